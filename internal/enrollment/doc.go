// Package enrollment продвигает контакты по drip-последовательностям.
//
// # Processor
//
// ProcessDue выбирает активные enrollments с next_action_at ≤ now
// (не больше batchSize, старые первыми) и для каждого независимо:
//
//  1. Последовательность не найдена или неактивна → paused
//  2. current_step ≥ len(steps) → completed
//  3. Выполняет steps[current_step] через Executor
//  4. Успех → следующий шаг через его задержку, либо completed
//  5. Ошибка → запись в историю, состояние не меняется
//
// Неуспешный шаг повторяется на каждом следующем тике, пока не пройдёт
// или пока enrollment не поставят на паузу. Backoff не используется.
//
// Ошибка или паника при обработке одного enrollment не влияет
// на остальные в пачке.
//
// # Service
//
// Service — операции жизненного цикла: запись контакта, пауза,
// возобновление, отмена. Каждая операция добавляет запись в историю.
package enrollment
