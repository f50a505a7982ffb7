// Package render подставляет переменные в тексты шагов и напоминаний.
//
// Плейсхолдеры имеют вид {name}. Неизвестные переменные остаются
// в тексте как есть, рендеринг никогда не завершается ошибкой.
//
//	vars := render.ContactVars(contact, business).With(step.Variables)
//	subject := render.Render("Hi {first_name}", vars)
package render
