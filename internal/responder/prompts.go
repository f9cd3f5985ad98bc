package responder

import (
	"fmt"
	"strings"

	"github.com/andrrrrey/avito-crm/internal/domain"
)

// EscalateInstruction tells the assistant when to hand the chat to a human.
// AiAssistant.EscalationPrompt replaces it when set.
const EscalateInstruction = `## Перевод на менеджера

Ты ОБЯЗАН добавить маркер [ESCALATE] и перевести на менеджера, если:
- Клиент просит позвать человека, оператора, менеджера или живого сотрудника.
- Клиент настаивает на разговоре с человеком.
- Ты выполнил поиск по базе знаний и НЕ нашёл ответа на вопрос клиента.
- Клиент выражает сильное недовольство, жалуется или конфликтует.
- Клиент просит решить проблему, которая требует действий менеджера (возврат, компенсация, изменение заказа).
- Ты не уверен в правильности своего ответа.

Когда переводишь на менеджера:
1. Коротко и вежливо сообщи клиенту, что переводишь на менеджера.
2. В самом конце своего сообщения добавь маркер [ESCALATE] на отдельной строке.

Маркер [ESCALATE] должен быть ПОСЛЕДНИМ в сообщении. Не используй его, если ты уверен в ответе.`

const knowledgeBaseInstruction = `## Работа с базой знаний и контекстом диалога

Для КАЖДОГО сообщения клиента выполни поиск по файлам (file_search) в базе знаний.
Учитывай контекст всего диалога: что клиент уже спрашивал и что ты уже отвечал.
Если в базе знаний нет ответа на вопрос клиента, переводи на менеджера.`

const dialogInstruction = `## Контекст диалога

Учитывай контекст всего диалога: что клиент уже спрашивал и что ты уже отвечал.`

// chatContext renders what is known about the customer and listing, or "".
func chatContext(c *domain.Chat) string {
	var parts []string
	if c.CustomerName != nil && *c.CustomerName != "" {
		parts = append(parts, "Имя клиента: "+*c.CustomerName)
	}
	if c.ItemTitle != nil && *c.ItemTitle != "" {
		parts = append(parts, "Товар/объявление: "+*c.ItemTitle)
	}
	if c.Price != nil && *c.Price != 0 {
		parts = append(parts, fmt.Sprintf("Цена: %d ₽", *c.Price))
	}
	if len(parts) == 0 {
		return ""
	}
	return "## Контекст текущего чата\n\n" + strings.Join(parts, "\n")
}

func additionalInstructions(c *domain.Chat, s *domain.AiAssistant) string {
	var b strings.Builder
	if ctx := chatContext(c); ctx != "" {
		b.WriteString(ctx)
		b.WriteString("\n\n")
	}
	if value(s.VectorStoreID) != "" {
		b.WriteString(knowledgeBaseInstruction)
	} else {
		b.WriteString(dialogInstruction)
	}
	b.WriteString("\n\n")
	if p := value(s.EscalationPrompt); p != "" {
		b.WriteString(p)
	} else {
		b.WriteString(EscalateInstruction)
	}
	return b.String()
}

func value(p *string) string {
	if p == nil {
		return ""
	}
	return strings.TrimSpace(*p)
}
