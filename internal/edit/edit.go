// Package edit validates user-submitted artifact edits and projects facts
// discovered in them back into the ledger.
package edit

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/ashureev/elicit/internal/artifacts"
	"github.com/ashureev/elicit/internal/domain"
)

// decodeRaw accepts either a JSON value or a bare string (the UI sends
// diagram edits as plain code, structured edits as JSON).
func decodeString(raw json.RawMessage) (string, bool) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, true
	}
	return "", false
}

// Mermaid validates diagram edits. Input is the raw code string or an
// object carrying a "code" field; stored form is always the Diagram model.
type Mermaid struct{}

func (Mermaid) ValidateAndParse(raw json.RawMessage) (json.RawMessage, error) {
	code, ok := decodeString(raw)
	if !ok {
		var obj struct {
			Code string `json:"code"`
		}
		if err := json.Unmarshal(raw, &obj); err != nil {
			return nil, errors.New("invalid Mermaid content: 'code' string is required")
		}
		code = obj.Code
	}
	if strings.TrimSpace(code) == "" {
		return nil, errors.New("invalid Mermaid content: 'code' string is required")
	}
	return json.Marshal(artifacts.Diagram{Code: code, Explanation: "User Edited"})
}

// contractStory carries the camelCase fields the UI renders stories with.
// Only the keys that diverge from the internal snake_case tags appear here;
// the UI presents the internal title as "description".
type contractStory struct {
	Role               string   `json:"role"`
	Action             string   `json:"action"`
	Benefit            string   `json:"benefit"`
	Description        string   `json:"description"`
	OutOfScope         []string `json:"outOfScope"`
	AcceptanceCriteria []string `json:"acceptanceCriteria"`
}

// decodeStory accepts a story in either the internal snake_case shape or
// the UI's camelCase contract shape; internal keys win when both appear.
func decodeStory(raw json.RawMessage) (artifacts.UserStory, error) {
	var s artifacts.UserStory
	if err := json.Unmarshal(raw, &s); err != nil {
		return artifacts.UserStory{}, err
	}
	var c contractStory
	if err := json.Unmarshal(raw, &c); err != nil {
		return artifacts.UserStory{}, err
	}
	if s.AsA == "" {
		s.AsA = c.Role
	}
	if s.IWantTo == "" {
		s.IWantTo = c.Action
	}
	if s.SoThat == "" {
		s.SoThat = c.Benefit
	}
	if s.Title == "" {
		s.Title = c.Description
	}
	if len(s.OutOfScope) == 0 {
		s.OutOfScope = c.OutOfScope
	}
	if len(s.AcceptanceCriteria) == 0 {
		s.AcceptanceCriteria = c.AcceptanceCriteria
	}
	return s, nil
}

// Stories validates backlog edits. Accepts {"stories": [...]} or a bare
// story list, in the internal snake_case shape or the UI's camelCase
// contract, and reverse-syncs unseen roles into the actor roster.
type Stories struct{}

func (Stories) ValidateAndParse(raw json.RawMessage) (json.RawMessage, error) {
	var wrapper struct {
		Stories []json.RawMessage `json:"stories"`
	}
	var list []json.RawMessage
	if err := json.Unmarshal(raw, &wrapper); err == nil && wrapper.Stories != nil {
		list = wrapper.Stories
	} else if err := json.Unmarshal(raw, &list); err != nil {
		return nil, errors.New("user stories must be a list or wrapped in {stories: []}")
	}

	stories := make([]artifacts.UserStory, 0, len(list))
	for _, item := range list {
		story, err := decodeStory(item)
		if err != nil {
			return nil, errors.New("user stories must be a list or wrapped in {stories: []}")
		}
		stories = append(stories, story)
	}
	return json.Marshal(artifacts.StorySet{Stories: stories})
}

// ApplyReverseSync adds any story role missing from the ledger as a new
// actor. Existing actors are never removed by a story edit.
func (Stories) ApplyReverseSync(state *domain.SessionState, content json.RawMessage) bool {
	var set artifacts.StorySet
	if err := json.Unmarshal(content, &set); err != nil {
		return false
	}
	var discovered []domain.Persona
	for _, story := range set.Stories {
		role := strings.TrimSpace(story.AsA)
		if role == "" {
			continue
		}
		discovered = append(discovered, domain.Persona{
			RoleName:         role,
			Responsibilities: "Derived from edited user story",
		})
	}
	if len(discovered) == 0 {
		return false
	}
	return state.AddActors(discovered)
}

// UseCases validates use-case edits. The UI wraps the list as
// {"useCases": []}; the internal shape uses {"use_cases": []}.
type UseCases struct{}

func (UseCases) ValidateAndParse(raw json.RawMessage) (json.RawMessage, error) {
	var set artifacts.UseCaseSet
	if err := json.Unmarshal(raw, &set); err != nil {
		return nil, errors.New("use cases must be wrapped in {use_cases: []}")
	}
	if set.UseCases == nil {
		var alias struct {
			UseCases []artifacts.UseCase `json:"useCases"`
		}
		if err := json.Unmarshal(raw, &alias); err != nil || alias.UseCases == nil {
			return nil, errors.New("use cases must be wrapped in {use_cases: []}")
		}
		set.UseCases = alias.UseCases
	}
	return json.Marshal(set)
}
