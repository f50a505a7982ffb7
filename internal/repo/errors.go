package repo

import "errors"

// Общие ошибки репозиториев.
var (
	// ErrNotFound — запись не найдена в БД.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists — контакт уже записан в последовательность.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidState — запись изменилась и больше не подходит для операции.
	ErrInvalidState = errors.New("invalid state")
)
