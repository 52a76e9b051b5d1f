// errors.go — ошибки бизнес-логики сервисного слоя.
package service

import "errors"

var (
	// ErrNotFound — запись о файле не найдена.
	ErrNotFound = errors.New("ресурс не найден")
	// ErrConflict — файл уже находится в обработке.
	ErrConflict = errors.New("конфликт состояния")
	// ErrForbidden — файл принадлежит другому владельцу.
	ErrForbidden = errors.New("доступ запрещён")
	// ErrValidationFailed — загрузка не прошла проверку.
	ErrValidationFailed = errors.New("файл не прошёл проверку")
	// ErrNoData — в каталоге нет объявлений для фида.
	ErrNoData = errors.New("нет данных для фида")
	// ErrReconcileFailed — сверка с табличным хранилищем завершилась ошибкой.
	ErrReconcileFailed = errors.New("ошибка сверки с хранилищем")
)
