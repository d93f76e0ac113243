package edit

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/ashureev/elicit/internal/artifacts"
	"github.com/ashureev/elicit/internal/domain"
)

// CategoryKind identifies which ledger field a workbook category feeds.
type CategoryKind int

const (
	KindUnknown CategoryKind = iota
	KindScope
	KindGoal
	KindActors
)

// Category classification is an explicit two-stage table: icon key first,
// then title substring. Keeping both stages in data makes the heuristic
// auditable in one place.
var iconKinds = map[string]CategoryKind{
	"target": KindGoal,
	"users":  KindActors,
}

var titleKinds = []struct {
	substr string
	kind   CategoryKind
}{
	{"goal", KindGoal},
	{"scope", KindScope},
	{"actor", KindActors},
	{"stakeholder", KindActors},
}

// ClassifyCategory resolves a workbook category to the ledger field it
// governs, or KindUnknown.
func ClassifyCategory(cat artifacts.WorkbookCategory) CategoryKind {
	if kind, ok := iconKinds[strings.ToLower(cat.Icon)]; ok {
		return kind
	}
	title := strings.ToLower(cat.Title)
	for _, rule := range titleKinds {
		if strings.Contains(title, rule.substr) {
			return rule.kind
		}
	}
	return KindUnknown
}

// Workbook validates workbook edits and reverse-syncs recognized
// categories into the ledger, wholesale-replacing the governed fields.
type Workbook struct{}

func (Workbook) ValidateAndParse(raw json.RawMessage) (json.RawMessage, error) {
	var wb artifacts.Workbook
	if err := json.Unmarshal(raw, &wb); err != nil || wb.Categories == nil {
		return nil, errors.New("workbook must be wrapped in {categories: []}")
	}
	return json.Marshal(wb)
}

func (Workbook) ApplyReverseSync(state *domain.SessionState, content json.RawMessage) bool {
	var wb artifacts.Workbook
	if err := json.Unmarshal(content, &wb); err != nil {
		return false
	}

	changed := false
	for _, cat := range wb.Categories {
		switch ClassifyCategory(cat) {
		case KindScope:
			if scope := joinItems(cat.Items); scope != "" && scope != state.ProjectScope {
				state.SetScope(scope)
				changed = true
			}
		case KindGoal:
			if goal := goalFromItems(cat.Items); goal != nil {
				state.SetGoal(goal)
				changed = true
			}
		case KindActors:
			if personas := personasFromItems(cat.Items); len(personas) > 0 {
				state.Actors = nil
				state.AddActors(personas)
				changed = true
			}
		}
	}
	return changed
}

func joinItems(items []artifacts.WorkbookItem) string {
	var texts []string
	for _, item := range items {
		if t := strings.TrimSpace(item.Text); t != "" {
			texts = append(texts, t)
		}
	}
	return strings.Join(texts, " ")
}

// goalFromItems treats the first item as the main goal and the rest as KPIs.
func goalFromItems(items []artifacts.WorkbookItem) *domain.BusinessGoal {
	var texts []string
	for _, item := range items {
		if t := strings.TrimSpace(item.Text); t != "" {
			texts = append(texts, t)
		}
	}
	if len(texts) == 0 {
		return nil
	}
	return &domain.BusinessGoal{MainGoal: texts[0], SuccessMetrics: texts[1:]}
}

// personasFromItems parses "Role: responsibilities" item lines; a line
// without a separator becomes a role with no responsibilities.
func personasFromItems(items []artifacts.WorkbookItem) []domain.Persona {
	var personas []domain.Persona
	for _, item := range items {
		text := strings.TrimSpace(item.Text)
		if text == "" {
			continue
		}
		role, responsibilities := text, ""
		for _, sep := range []string{":", " - ", "->"} {
			if idx := strings.Index(text, sep); idx > 0 {
				role = strings.TrimSpace(text[:idx])
				responsibilities = strings.TrimSpace(text[idx+len(sep):])
				break
			}
		}
		personas = append(personas, domain.Persona{RoleName: role, Responsibilities: responsibilities})
	}
	return personas
}
