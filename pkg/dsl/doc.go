/*
Package dsl provides a Go DSL for programmatically constructing IVR flows.

It defines menu trees with a fluent builder instead of JSON or YAML documents.
This is useful for generated menus, unit tests and IDE type checking.

Example usage:

	b := dsl.New()

	b.Flow("hello").
		State("start").
		Prompt("Say yes or press 1 to continue.").
		Option("1", "Continue", "ask_name", "yes", "continue").
		State("ask_name").
		Prompt("What is your name?").
		Capture("caller_name", "bye").
		State("bye").
		Prompt("Goodbye!").
		Terminal()

	loader, err := b.Build()
	if err != nil {
		log.Fatal(err)
	}

	// The loader satisfies ports.FlowLoader.
	engine, err := ivr.New("", ivr.WithLoader(loader), ivr.WithMainFlow("hello"))
*/
package dsl
