package flow

import (
	"encoding/json"

	"github.com/corretor-crm/corretor/pkg/models"
)

// BlankTemplateID is the template used by the "new flow" modal.
const BlankTemplateID = "blank"

func node(id string, nodeType models.NodeType, label string, x, y float64, config map[string]any) *models.Node {
	return &models.Node{
		ID:       id,
		Type:     nodeType,
		Position: models.Position{X: x, Y: y},
		Data:     models.NodeData{Label: label, Config: config},
	}
}

func edge(source, target, handle string) *models.Edge {
	id := source + "-" + target
	if handle != "" {
		id += "-" + handle
	}

	return &models.Edge{ID: id, Source: source, Target: target, SourceHandle: handle}
}

var builtinTemplates = []models.FlowTemplate{
	{
		ID:          BlankTemplateID,
		Name:        "Fluxo em branco",
		Description: "Apenas o nó inicial",
		Nodes: []*models.Node{
			node("start", models.NodeTypeStart, "Início", 250, 0, nil),
		},
		Edges: []*models.Edge{},
	},
	{
		ID:          "qualificacao-locacao",
		Name:        "Qualificação de locação",
		Description: "Confirma interesse em alugar e encaminha para um corretor",
		Department:  models.DepartmentLocacao,
		Nodes: []*models.Node{
			node("start", models.NodeTypeStart, "Início", 250, 0, nil),
			node("welcome", models.NodeTypeMessage, "Boas-vindas", 250, 100, map[string]any{
				"text":          "Olá {{ firstName .nome }}! Você está procurando um imóvel para alugar? Responda SIM ou NÃO.",
				"delay_seconds": 1,
			}),
			node("interest", models.NodeTypeCondition, "Interesse", 250, 220, map[string]any{
				"condition_type": "keyword",
				"variable":       "interesse",
				"branches": []any{
					map[string]any{"id": "yes", "label": "Sim", "value": "sim", "keywords": []any{"sim", "quero", "claro", "isso"}},
					map[string]any{"id": "no", "label": "Não", "value": "nao", "keywords": []any{"nao", "agora nao", "obrigado"}},
					map[string]any{"id": "other", "label": "Outro", "value": "", "keywords": []any{}},
				},
			}),
			node("tag", models.NodeTypeAction, "Marcar interessado", 100, 340, map[string]any{
				"action_type": "add_tag",
				"tag":         "interessado-locacao",
			}),
			node("handoff", models.NodeTypeEscalation, "Corretor", 100, 460, map[string]any{
				"reason":     "Lead confirmou interesse em locação",
				"department": "locacao",
				"priority":   "high",
			}),
			node("bye", models.NodeTypeEnd, "Encerrar", 250, 340, map[string]any{
				"message": "Tudo bem! Quando precisar, é só chamar.",
			}),
			node("retry", models.NodeTypeMessage, "Não entendi", 400, 340, map[string]any{
				"text": "Desculpe, não entendi. Responda SIM ou NÃO, por favor.",
			}),
		},
		Edges: []*models.Edge{
			edge("start", "welcome", ""),
			edge("welcome", "interest", ""),
			edge("interest", "tag", models.BranchHandle("yes")),
			edge("interest", "bye", models.BranchHandle("no")),
			edge("interest", "retry", models.BranchHandle("other")),
			edge("tag", "handoff", ""),
			edge("retry", "interest", ""),
		},
	},
	{
		ID:          "atendimento-vendas",
		Name:        "Atendimento de vendas",
		Description: "Identifica a intenção do comprador e respeita o horário comercial",
		Department:  models.DepartmentVendas,
		Nodes: []*models.Node{
			node("start", models.NodeTypeStart, "Início", 250, 0, nil),
			node("hours", models.NodeTypeCondition, "Horário comercial", 250, 100, map[string]any{
				"condition_type": "time",
				"branches": []any{
					map[string]any{"id": "open", "label": "Aberto", "value": "08:00-18:00", "keywords": []any{}},
					map[string]any{"id": "closed", "label": "Fechado", "value": "", "keywords": []any{}},
				},
			}),
			node("ask", models.NodeTypeMessage, "Pergunta", 100, 220, map[string]any{
				"text": "Olá {{ firstName .nome }}! Você quer comprar para morar ou para investir?",
			}),
			node("after-hours", models.NodeTypeMessage, "Fora do horário", 400, 220, map[string]any{
				"text": "Nosso horário de atendimento é das 8h às 18h. Um corretor retornará em breve.",
			}),
			node("intent", models.NodeTypeCondition, "Intenção", 100, 340, map[string]any{
				"condition_type": "intent",
				"variable":       "objetivo",
				"branches": []any{
					map[string]any{"id": "live", "label": "Morar", "value": "morar", "keywords": []any{}},
					map[string]any{"id": "invest", "label": "Investir", "value": "investir", "keywords": []any{}},
					map[string]any{"id": "unknown", "label": "Outro", "value": "", "keywords": []any{}},
				},
			}),
			node("save", models.NodeTypeAction, "Registrar perfil", 100, 460, map[string]any{
				"action_type": "set_variable",
				"variable":    "perfil",
				"value":       "comprador-{{ .objetivo }}",
			}),
			node("handoff", models.NodeTypeEscalation, "Corretor", 100, 580, map[string]any{
				"reason":     "Comprador qualificado",
				"department": "vendas",
				"priority":   "normal",
			}),
			node("end", models.NodeTypeEnd, "Fim", 400, 340, nil),
		},
		Edges: []*models.Edge{
			edge("start", "hours", ""),
			edge("hours", "ask", models.BranchHandle("open")),
			edge("hours", "after-hours", models.BranchHandle("closed")),
			edge("after-hours", "end", ""),
			edge("ask", "intent", ""),
			edge("intent", "save", models.BranchHandle("live")),
			edge("intent", "save", models.BranchHandle("invest")),
			edge("intent", "handoff", models.BranchHandle("unknown")),
			edge("save", "handoff", ""),
		},
	},
}

// Templates returns copies of the built-in flow templates.
func Templates() []models.FlowTemplate {
	out := make([]models.FlowTemplate, 0, len(builtinTemplates))
	for _, tpl := range builtinTemplates {
		out = append(out, cloneTemplate(tpl))
	}

	return out
}

// TemplateByID returns a copy of the template with the given ID.
func TemplateByID(id string) (models.FlowTemplate, bool) {
	for _, tpl := range builtinTemplates {
		if tpl.ID == id {
			return cloneTemplate(tpl), true
		}
	}

	return models.FlowTemplate{}, false
}

func cloneTemplate(tpl models.FlowTemplate) models.FlowTemplate {
	raw, err := json.Marshal(tpl)
	if err != nil {
		panic(err)
	}

	var out models.FlowTemplate
	if err := json.Unmarshal(raw, &out); err != nil {
		panic(err)
	}

	return out
}
