// Package common — errors.go определяет пользовательские ошибки,
// которые используются во всех модулях бота.
// Эти ошибки позволяют обработчикам различать типы проблем
// и отправлять пользователю понятные сообщения.
package common

import "errors"

// Ошибки репутации
var (
	// ErrRecordNotFound — записи репутации для пары (пользователь, чат) нет
	ErrRecordNotFound = errors.New("запись репутации не найдена")
	// ErrLedgerConflict — конфликт конкурентного обновления, повторы исчерпаны
	ErrLedgerConflict = errors.New("конфликт обновления репутации")
	// ErrInvalidLimit — некорректный размер выборки
	ErrInvalidLimit = errors.New("лимит выборки должен быть положительным")
	// ErrInvalidAmount — некорректное количество очков (ноль или шире диапазона репутации)
	ErrInvalidAmount = errors.New("количество очков должно быть ненулевым и не больше диапазона репутации")
)

// Ошибки консоли модератора
var (
	// ErrNotAdmin — пользователь не является администратором
	ErrNotAdmin = errors.New("у вас нет прав администратора")
	// ErrWrongPassword — неверный пароль
	ErrWrongPassword = errors.New("неверный пароль")
	// ErrTooManyAttempts — слишком много неудачных попыток входа
	ErrTooManyAttempts = errors.New("слишком много попыток, подождите 1 час")
	// ErrSessionExpired — сессия истекла
	ErrSessionExpired = errors.New("сессия истекла, авторизуйтесь заново")
	// ErrConsoleDisabled — ADMIN_PASSWORD_HASH не задан
	ErrConsoleDisabled = errors.New("консоль модератора отключена")
)
