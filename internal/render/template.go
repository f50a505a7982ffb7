package render

import (
	"regexp"

	"github.com/shaiso/Engage/internal/domain"
)

// placeholder — {variable}. Имя — буквы, цифры и подчёркивание.
var placeholder = regexp.MustCompile(`\{(\w+)\}`)

// Vars — переменные для подстановки.
type Vars map[string]string

// Business — реквизиты бизнеса, доступные во всех шаблонах.
type Business struct {
	Name       string
	WebsiteURL string
}

// ContactVars строит переменные по умолчанию для контакта.
//
// Переменные: first_name (по умолчанию "there"), name (по умолчанию
// "Valued Customer"), email, phone, business_name, website_url.
func ContactVars(c domain.Contact, b Business) Vars {
	firstName := c.FirstName()
	if firstName == "" {
		firstName = "there"
	}
	name := c.Name
	if name == "" {
		name = "Valued Customer"
	}
	return Vars{
		"first_name":    firstName,
		"name":          name,
		"email":         c.Email,
		"phone":         c.Phone,
		"business_name": b.Name,
		"website_url":   b.WebsiteURL,
	}
}

// With возвращает копию v, дополненную extra. Значения extra имеют приоритет.
func (v Vars) With(extra map[string]string) Vars {
	out := make(Vars, len(v)+len(extra))
	for k, val := range v {
		out[k] = val
	}
	for k, val := range extra {
		out[k] = val
	}
	return out
}

// Render заменяет {key} на значение переменной.
// Неизвестные ключи остаются без изменений.
func Render(tmpl string, vars Vars) string {
	if tmpl == "" || len(vars) == 0 {
		return tmpl
	}
	return placeholder.ReplaceAllStringFunc(tmpl, func(m string) string {
		key := m[1 : len(m)-1]
		if val, ok := vars[key]; ok {
			return val
		}
		return m
	})
}

// RenderValue рендерит произвольное значение.
// Рекурсивно обрабатывает map и slice, остальные типы возвращает как есть.
func RenderValue(value any, vars Vars) any {
	switch v := value.(type) {
	case string:
		return Render(v, vars)

	case map[string]any:
		result := make(map[string]any, len(v))
		for key, val := range v {
			result[key] = RenderValue(val, vars)
		}
		return result

	case []any:
		result := make([]any, len(v))
		for i, val := range v {
			result[i] = RenderValue(val, vars)
		}
		return result

	case map[string]string:
		result := make(map[string]string, len(v))
		for key, val := range v {
			result[key] = Render(val, vars)
		}
		return result

	default:
		return value
	}
}

// RenderContent рендерит все тексты шага.
func RenderContent(c domain.StepContent, vars Vars) domain.StepContent {
	return domain.StepContent{
		Subject:           Render(c.Subject, vars),
		Body:              Render(c.Body, vars),
		SMSBody:           Render(c.SMSBody, vars),
		NotificationTitle: Render(c.NotificationTitle, vars),
		NotificationBody:  Render(c.NotificationBody, vars),
		TaskTitle:         Render(c.TaskTitle, vars),
		TaskDescription:   Render(c.TaskDescription, vars),
	}
}
