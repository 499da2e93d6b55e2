/*
Package dsl provides a Go DSL (Domain Specific Language) for programmatically constructing promptloom projects.

It allows developers to define prompt projects using a type-safe, fluent builder pattern
instead of relying on external YAML or JSON files. This is particularly useful for generated
projects, unit testing, and leveraging IDE autocompletion/type-checking.

Example usage:

	package main

	import (
		"github.com/aretw0/promptloom/pkg/dsl"
	)

	func main() {
		b := dsl.New("support").Name("Support bot")

		b.Add("persona").
			Label("Persona").
			System("You support {{product}} customers.")

		b.Add("history").
			Memory("{{history}}").
			Go("question")

		b.Add("question").
			User("{{question}}")

		b.Var("product", "Widget").
			Dynamic("history", "chat://s1", "10")

		// Build validates the project and orders it by its edges.
		project, err := b.Build()
		// ... pass project to promptloom.Engine.Render(...)
	}
*/
package dsl
