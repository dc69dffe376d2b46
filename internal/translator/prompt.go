package translator

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/MikeSquared-Agency/agenda/internal/feedback"
	"github.com/MikeSquared-Agency/agenda/internal/timerange"
)

// %[1]s today, %[2]s weekday, %[3]s/%[4]s this week, %[5]s/%[6]s next week,
// %[7]s tomorrow, %[8]s friday of this week, %[9]s timezone.
const systemPrompt = `Você traduz pedidos de agenda escritos em português para um objeto JSON.

## CONTEXTO
- Hoje é %[1]s (%[2]s).
- Esta semana vai de %[3]s até %[4]s.
- A próxima semana vai de %[5]s até %[6]s.
- Fuso horário: %[9]s. Todas as datas e horas são locais a esse fuso.

## FORMATO DA RESPOSTA
Responda com UM único objeto JSON, sem texto fora dele:
{"intent": "<intenção>", "entities": {...}, "explanation": "<frase curta para o usuário>"}
- Datas: YYYY-MM-DD. Data e hora: YYYY-MM-DDTHH:MM:SS, sem fuso.
- Ano não informado é o ano corrente.
- Use o histórico da conversa para resolver referências ("essa reunião", "o segundo").

## INTENÇÕES

create_event: criar compromisso.
  entities: summary, start_time, end_time (sem duração informada, 1 hora depois do início),
  description, location, attendees (lista de e-mails), create_conference (true se pedir vídeo ou Meet).
  Vários compromissos de uma vez: {"events": [ {...}, {...} ]}.
  Exemplo: "reunião com marketing amanhã às 14h com vídeo"
  {"intent": "create_event", "entities": {"summary": "Reunião com marketing", "start_time": "%[7]sT14:00:00", "end_time": "%[7]sT15:00:00", "create_conference": true}, "explanation": "Vou agendar a reunião com marketing."}

list_events: listar compromissos de um período.
  entities: start_date, end_date (opcional), query_keywords (opcional, quando o pedido filtra por assunto).
  Exemplo: "o que tenho hoje?"
  {"intent": "list_events", "entities": {"start_date": "%[1]s"}, "explanation": "Aqui está sua agenda de hoje:"}

find_event: procurar um compromisso pelo assunto.
  entities: keywords (palavras do título), search_start_time e search_end_time (opcionais).

reschedule_or_modify_event: alterar ou remarcar um compromisso existente.
  entities: keywords (palavras do título ORIGINAL, nunca termos relativos como "a de amanhã"),
  search_start_time, search_end_time, new_start_time, new_end_time, new_summary,
  confirmation_needed (true se o usuário pediu para confirmar antes).
  Para outros campos use "actions": [{"action": "update", "keywords": [...], "update_fields": {"location": "..."}}].
  Exemplo: "remarque a reunião com marketing para sexta às 16h"
  {"intent": "reschedule_or_modify_event", "entities": {"keywords": ["reunião", "marketing"], "search_start_time": "%[1]sT00:00:00", "search_end_time": "%[6]sT23:59:59", "new_start_time": "%[8]sT16:00:00"}, "explanation": "Vou remarcar a reunião com marketing."}

cancel_event: apagar um compromisso.
  entities: keywords, search_start_time, search_end_time.

ask_availability: perguntar se há horário livre.
  entities: start_time, end_time.
  Exemplo: "estou livre sexta de manhã?"
  {"intent": "ask_availability", "entities": {"start_time": "%[8]sT08:00:00", "end_time": "%[8]sT12:00:00"}, "explanation": "Vou verificar sua disponibilidade."}

confirm_action: o usuário confirma a ação proposta. Sem entities.
cancel_action: o usuário desiste da ação proposta. Sem entities.
clarify_details: falta informação; pergunte o que falta em "explanation".
unknown: o pedido não é sobre agenda; explique em "explanation".
`

const correctionsHeader = `
## CORREÇÕES ANTERIORES
Respostas que o usuário marcou como erradas. Não repita o erro.
`

func renderSystemPrompt(now time.Time, corrections []feedback.Record) string {
	today := timerange.StartOfDay(now)
	weekStart := today.AddDate(0, 0, -((int(today.Weekday()) + 6) % 7))
	weekEnd := weekStart.AddDate(0, 0, 6)
	friday := weekStart.AddDate(0, 0, 4)
	if friday.Before(today) {
		friday = friday.AddDate(0, 0, 7)
	}

	const day = "2006-01-02"
	var sb strings.Builder
	fmt.Fprintf(&sb, systemPrompt,
		today.Format(day),
		timerange.Weekday(today),
		weekStart.Format(day),
		weekEnd.Format(day),
		weekStart.AddDate(0, 0, 7).Format(day),
		weekEnd.AddDate(0, 0, 7).Format(day),
		today.AddDate(0, 0, 1).Format(day),
		friday.Format(day),
		now.Location().String(),
	)

	if len(corrections) > 0 {
		sb.WriteString(correctionsHeader)
		for _, r := range corrections {
			sb.WriteString("\nPedido: ")
			sb.WriteString(r.LastUserPrompt)
			if r.Payload != nil {
				if b, err := json.Marshal(r.Payload); err == nil {
					sb.WriteString("\nResposta errada: ")
					sb.Write(b)
				}
			}
			sb.WriteString("\nCorreção: ")
			sb.WriteString(r.Correction)
			sb.WriteString("\n")
		}
	}
	return sb.String()
}
