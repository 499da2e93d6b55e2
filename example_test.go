package promptloom_test

import (
	"context"
	"fmt"

	"github.com/aretw0/promptloom"
	"github.com/aretw0/promptloom/pkg/domain"
)

// ExampleEngine_Render demonstrates a labeled render with one unresolved placeholder.
func ExampleEngine_Render() {
	eng := promptloom.New()

	project := domain.Project{
		ID: "greeting",
		Nodes: []domain.ProjectNode{
			{ID: "sys", Label: "Persona", Kind: domain.KindSystem, Content: "You are {{persona}}."},
			{ID: "usr", Label: "Ask", Kind: domain.KindUser, Content: "Hi, I am {{name}}."},
		},
		Variables: []domain.ProjectVariable{
			{ID: "1", Name: "persona", Value: "a helpful agent"},
		},
	}

	run := eng.Render(context.Background(), project, promptloom.WithStyle(domain.StyleLabeled))
	fmt.Println(run.Text)
	fmt.Println(run.MissingVariables())

	// Output:
	// [system] Persona
	// You are a helpful agent.
	//
	// [user] Ask
	// Hi, I am {{name}}.
	// [name]
}

// ExampleEngine_Diff shows the row kinds of a line comparison.
func ExampleEngine_Diff() {
	eng := promptloom.New()
	for _, row := range eng.Diff("a\nb\nc", "a\nx\nc\nd") {
		fmt.Printf("%-13s %q %q\n", row.Kind, row.Left, row.Right)
	}

	// Output:
	// same          "a" "a"
	// changed       "b" "x"
	// same          "c" "c"
	// missing-left  "" "d"
}
