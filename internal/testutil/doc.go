// Package testutil содержит in-memory реализации репозиториев
// и фейковые каналы доставки для тестов.
//
// Хранилища потокобезопасны и возвращают копии, чтобы тест видел
// только то, что было явно сохранено через Update/Create.
package testutil
