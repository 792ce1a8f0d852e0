// Command intentflow turns natural-language requests into dependency-ordered
// task graphs and executes them against a masked tool registry.
package main

func main() {
	Execute()
}
