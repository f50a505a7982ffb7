// Package domain содержит доменные модели движка вовлечения.
//
// Основные сущности:
//   - Sequence — шаблон цепочки шагов (drip-последовательность)
//   - Enrollment — прохождение одного контакта через одну Sequence
//   - ReminderLogEntry — запись журнала отправленных напоминаний
//   - Appointment, Lead, Invoice — read-only представления внешних записей,
//     по которым строятся напоминания
//
// Все изменения current_step, status и next_action_at у Enrollment
// выполняются методами этого пакета, и каждый такой метод добавляет
// запись в StepHistory.
package domain
