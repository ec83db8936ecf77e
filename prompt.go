package secretary

import (
	"strings"

	"github.com/hupe1980/secretary/internal/util"
	"github.com/hupe1980/secretary/tool"
)

type locale struct {
	prompt     string
	dateLayout string
	noData     string
	noToolData string
	indicators []string
}

var locales = map[string]locale{
	"en": {
		prompt: `
			You are a Virtual Secretary
			:: Instructions:
			- If the data is insufficient, ask the user to clarify it. Do NOT make up information
			- After each tool call briefly check the result (1-2 sentences) and continue only if everything is correct
			Context:
			- Current time {{.TimeZone}}: {{.CurrentDate}}
			:: Use only the available tools according to allowed_tools: {{join ", " .Tools}}. Do not take destructive actions without the user's confirmation.
		`,
		dateLayout: "Jan 2, 2006, 15:04",
		noData:     tool.NoDataContent,
		noToolData: "The tool returned no data",
		indicators: tool.DefaultErrorIndicators,
	},
	"ru": {
		prompt: `
			Ты Виртуальный Секретарь
			:: Инструкции:
			- Если данных недостаточно, уточни их у пользователя. НЕ выдумывай информацию
			- После каждого вызова инструмента кратко проверь результат (1-2 предложения) и продолжай только если всё корректно
			Контекст:
			- Текущее время {{.TimeZone}}: {{.CurrentDate}}
			:: Используй только доступные инструменты согласно allowed_tools: {{join ", " .Tools}}. Не совершай разрушительных действий без подтверждения пользователя.
		`,
		dateLayout: "02.01.2006, 15:04",
		noData:     "Данные отсутствуют",
		noToolData: "Инструмент не вернул данных",
		indicators: []string{"Error", "Ошибка"},
	},
}

// localeFor resolves "ru", "ru-RU", "ru_RU" style tags; unknown tags fall back to English.
func localeFor(tag string) locale {
	lang := strings.ToLower(tag)
	if i := strings.IndexAny(lang, "-_"); i >= 0 {
		lang = lang[:i]
	}
	if l, ok := locales[lang]; ok {
		return l
	}
	return locales["en"]
}

func (s *Secretary) renderPrompt(tools []tool.Tool) (string, error) {
	text := s.opts.PromptTemplate
	if text == "" {
		text = localeFor(s.opts.Locale).prompt
	}

	names := make([]string, 0, len(tools))
	for _, t := range tools {
		if t != nil {
			names = append(names, t.Name())
		}
	}

	out, err := util.RenderTemplate(text, map[string]any{
		"TimeZone":    s.opts.TimeZone,
		"CurrentDate": s.CurrentDate(),
		"Tools":       names,
	})
	if err != nil {
		return "", err
	}
	return util.CollapseWhitespace(out), nil
}
