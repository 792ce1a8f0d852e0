// Package orchestrator turns one free-text request into an executed task
// graph.
//
// Plan runs the request through the multi-intent recognizer, fills each
// intent's slots, optionally decomposes every intent into subtasks and
// converts the result into executor task nodes. Execute runs a plan on a
// fresh executor and dispatches every node to the tool registry.
//
// Example usage:
//
//	o := orchestrator.New(orchestrator.WithTools(tools), orchestrator.WithBus(bus))
//	plan, err := o.Plan(ctx, "创建网站并部署到云端", mctx)
//	res, err := o.Execute(ctx, plan)
package orchestrator
