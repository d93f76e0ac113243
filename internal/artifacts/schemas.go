package artifacts

import "github.com/ashureev/elicit/internal/jsonschema"

// Structured-output schemas for each artifact model. They are enforced
// strict before being sent to the provider.

func diagramSchema() *jsonschema.Schema {
	return jsonschema.Object(map[string]*jsonschema.Schema{
		"code":        jsonschema.String("The raw MermaidJS diagram code"),
		"explanation": jsonschema.String("Brief explanation"),
	})
}

func storySetSchema() *jsonschema.Schema {
	story := jsonschema.Object(map[string]*jsonschema.Schema{
		"id":                  jsonschema.String("Unique ID"),
		"title":               jsonschema.String(""),
		"as_a":                jsonschema.String("The actor role"),
		"i_want_to":           jsonschema.String("The action"),
		"so_that":             jsonschema.String("The benefit"),
		"acceptance_criteria": jsonschema.Array(jsonschema.String("")),
		"priority":            {Type: "string", Enum: []string{"High", "Medium", "Low"}},
		"estimate":            jsonschema.String("Story point estimate, e.g. SP:3"),
		"scope":               jsonschema.Array(jsonschema.String("")),
		"out_of_scope":        jsonschema.Array(jsonschema.String("")),
	})
	return jsonschema.Object(map[string]*jsonschema.Schema{
		"stories": jsonschema.Array(story),
	})
}

func useCaseSetSchema() *jsonschema.Schema {
	flowStep := jsonschema.Object(map[string]*jsonschema.Schema{
		"step_number":      {Type: "integer", Description: "Sequential step number starting at 1"},
		"action":           jsonschema.String("The happy path step"),
		"alternative_flow": jsonschema.String("Branch or error handling, empty if none"),
	})
	useCase := jsonschema.Object(map[string]*jsonschema.Schema{
		"id":             jsonschema.String("Unique ID"),
		"title":          jsonschema.String(""),
		"primary_actor":  jsonschema.String(""),
		"preconditions":  jsonschema.Array(jsonschema.String("")),
		"postconditions": jsonschema.Array(jsonschema.String("")),
		"main_flow":      jsonschema.Array(flowStep),
	})
	return jsonschema.Object(map[string]*jsonschema.Schema{
		"use_cases": jsonschema.Array(useCase),
	})
}

func workbookSchema() *jsonschema.Schema {
	item := jsonschema.Object(map[string]*jsonschema.Schema{
		"id":   jsonschema.String("Unique ID"),
		"text": jsonschema.String("Content. Use '->' for flows."),
	})
	category := jsonschema.Object(map[string]*jsonschema.Schema{
		"id":    jsonschema.String("Unique ID"),
		"title": jsonschema.String("Category Title"),
		"icon":  jsonschema.String("Icon key: target, users, activity, process"),
		"items": jsonschema.Array(item),
	})
	return jsonschema.Object(map[string]*jsonschema.Schema{
		"categories": jsonschema.Array(category),
	})
}
