// Package reminder отправляет напоминания по встречам, лидам и счетам.
//
// Три независимых потока:
//   - ProcessAppointments — встречи, начинающиеся в окне (24h–25h, 1h–2h)
//   - ProcessLeadFollowUps — лиды в статусе new дольше 48 часов
//   - ProcessPaymentReminders — просроченные неоплаченные счета
//
// Перед отправкой каждая сущность проверяется через dedup.Deduplicator,
// после хотя бы одной успешной отправки запись фиксируется.
// Если все отправки провалились, запись не делается и напоминание
// будет повторено на следующем тике.
//
// Ошибка по одной сущности не прерывает обработку остальных.
package reminder
