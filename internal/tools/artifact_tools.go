package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ashureev/elicit/internal/domain"
	"github.com/ashureev/elicit/internal/jsonschema"
)

// InspectArtifact looks up a sub-item inside an artifact's current
// version by fuzzy text match, without modifying anything.
type InspectArtifact struct{}

func (InspectArtifact) Name() string { return "inspect_artifact" }

func (InspectArtifact) Description() string {
	return "Finds a specific item (story, use case, workbook entry) inside an artifact's current version by fuzzy text match. Use before patching."
}

func (InspectArtifact) InputSchema() *jsonschema.Schema {
	return jsonschema.Object(map[string]*jsonschema.Schema{
		"artifact_type": jsonschema.String("The artifact to inspect, e.g. 'user_story'."),
		"query":         jsonschema.String("Text to match against item titles or content."),
	})
}

func (InspectArtifact) Execute(_ context.Context, args json.RawMessage, tc *Context) (string, error) {
	var input struct {
		ArtifactType string `json:"artifact_type"`
		Query        string `json:"query"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return errorResult("Invalid arguments for inspect_artifact: " + err.Error()), nil
	}

	result, errMsg := findItem(tc, tc.State, input.ArtifactType, input.Query)
	if errMsg != "" {
		return errorResult(errMsg), nil
	}

	raw, err := json.Marshal(map[string]any{
		"status": "found",
		"path":   result.Path,
		"item":   result.Item,
	})
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// PatchArtifact applies a surgical field-level change to a matched item
// in the artifact's current version. The version counter is not bumped.
type PatchArtifact struct{}

func (PatchArtifact) Name() string { return "patch_artifact" }

func (PatchArtifact) Description() string {
	return "Applies a surgical field-level patch to one item inside an artifact's current version, found by fuzzy text match. Does not create a new version."
}

func (PatchArtifact) InputSchema() *jsonschema.Schema {
	return jsonschema.Object(map[string]*jsonschema.Schema{
		"artifact_type": jsonschema.String("The artifact to patch, e.g. 'user_story'."),
		"query":         jsonschema.String("Text to match against item titles or content."),
		"field":         jsonschema.String("The field on the matched item to set."),
		"value":         jsonschema.String("The new value for the field."),
	})
}

func (PatchArtifact) Execute(ctx context.Context, args json.RawMessage, tc *Context) (string, error) {
	var input struct {
		ArtifactType string `json:"artifact_type"`
		Query        string `json:"query"`
		Field        string `json:"field"`
		Value        string `json:"value"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return errorResult("Invalid arguments for patch_artifact: " + err.Error()), nil
	}

	// Re-fetch before mutating: the loop's snapshot may predate a
	// background generation, and saving it would erase that artifact.
	state, err := tc.Manager.GetOrCreate(ctx, tc.State.SessionID)
	if err != nil {
		return "", fmt.Errorf("load session: %w", err)
	}

	result, errMsg := findItem(tc, state, input.ArtifactType, input.Query)
	if errMsg != "" {
		return errorResult(errMsg), nil
	}

	content, _ := state.CurrentArtifact(input.ArtifactType)
	patched, err := patchAtPath(content, result.Path, input.Field, input.Value)
	if err != nil {
		return errorResult("Patch failed: " + err.Error()), nil
	}

	state.OverwriteCurrentArtifact(input.ArtifactType, patched)
	if err := tc.Manager.Save(ctx, state); err != nil {
		return "", fmt.Errorf("persist patch: %w", err)
	}
	tc.State = state

	update, err := tc.Mapper.ArtifactUpdate(input.ArtifactType, patched)
	if err != nil {
		tc.Logger.Warn("map patched artifact failed", "type", input.ArtifactType, "error", err)
	} else if err := tc.Emit(update); err != nil {
		tc.Logger.Warn("emit artifact update failed", "error", err)
	}

	raw, _ := json.Marshal(map[string]string{
		"status": "patched",
		"path":   result.Path + "." + input.Field,
	})
	return string(raw), nil
}

type foundItem struct {
	Item map[string]any
	Path string
}

func findItem(tc *Context, state *domain.SessionState, artifactType, query string) (foundItem, string) {
	entry, registered := tc.Catalog.Resolve(artifactType)
	if !registered || entry.Search == nil {
		return foundItem{}, fmt.Sprintf("Artifact type '%s' does not support item search.", artifactType)
	}
	content, ok := state.CurrentArtifact(artifactType)
	if !ok {
		return foundItem{}, fmt.Sprintf("No '%s' artifact has been generated yet.", artifactType)
	}
	result := entry.Search.FindItem(content, query)
	if result == nil {
		return foundItem{}, fmt.Sprintf("No item matching '%s' found in '%s'.", query, artifactType)
	}
	return foundItem{Item: result.Item, Path: result.Path}, ""
}

// patchAtPath sets item[field] = value at a search path like
// "categories[0].items[3]" inside the decoded content.
func patchAtPath(content json.RawMessage, path, field, value string) (json.RawMessage, error) {
	var root map[string]any
	if err := json.Unmarshal(content, &root); err != nil {
		return nil, err
	}

	var node any = root
	for _, segment := range strings.Split(path, ".") {
		name, index, err := parseSegment(segment)
		if err != nil {
			return nil, err
		}
		obj, ok := node.(map[string]any)
		if !ok {
			return nil, errors.New("unexpected structure at " + segment)
		}
		list, ok := obj[name].([]any)
		if !ok || index < 0 || index >= len(list) {
			return nil, errors.New("path out of range at " + segment)
		}
		node = list[index]
	}

	item, ok := node.(map[string]any)
	if !ok {
		return nil, errors.New("matched item is not an object")
	}
	item[field] = value

	return json.Marshal(root)
}

func parseSegment(segment string) (name string, index int, err error) {
	open := strings.Index(segment, "[")
	if open < 0 || !strings.HasSuffix(segment, "]") {
		return "", 0, errors.New("malformed path segment " + segment)
	}
	index, err = strconv.Atoi(segment[open+1 : len(segment)-1])
	if err != nil {
		return "", 0, errors.New("malformed path index in " + segment)
	}
	return segment[:open], index, nil
}
