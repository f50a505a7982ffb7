// Package mq связывает движок с RabbitMQ.
//
// Структура:
//   - connection.go    — соединение с автоматическим переподключением
//   - topology.go      — exchanges, очереди, привязки
//   - publisher.go     — публикация событий движка
//   - consumer.go      — чтение очереди с ack/nack и DLQ
//   - enroll_handler.go — запросы на запись из других сервисов
//
// Exchanges:
//   - engage.events   (topic)  — enrollment.*, reminder.sent
//   - engage.requests (direct) — enroll → очередь engage.enrollments
//   - engage.dlq      (direct) — отклонённые запросы
package mq
