/*
Package promptloom renders prompt projects into annotated transcripts and
compares transcripts line by line.

A Project is an ordered list of typed nodes (system, user, assistant, tool,
memory, retrieval, text) whose content holds `{{name}}` placeholders, plus the
variables that fill them. Rendering substitutes every placeholder it can,
keeps the ones it cannot, and records what happened as diagnostics on each
segment and on the run. It never fails.

# Key Features

  - Deterministic Rendering: Given the same project, text and segments are always identical.
  - Graceful Degradation: Missing variables and malformed placeholders become messages, never errors.
  - Dynamic Variables: chat:// and SQL resolvers fill variables before rendering (RenderResolved).
  - Symmetric Diff: Swapping the inputs of a comparison mirrors the result.

# Usage

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

	run := eng.Render(ctx, project, promptloom.WithStyle(domain.StyleLabeled))
	fmt.Println(run.Text)          // "[system] Persona\nYou are a helpful agent.\n\n[user] Ask\nHi, I am {{name}}."
	fmt.Println(run.MissingVariables()) // [name]

	rows := eng.Diff(before.Text, run.Text)
*/
package promptloom
