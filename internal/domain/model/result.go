package model

// ValidationResult — результат проверки загрузки.
// OK истинно тогда и только тогда, когда Errors пуст.
type ValidationResult struct {
	OK       bool
	Errors   []string
	Warnings []string
}

// Messages возвращает ошибки, затем предупреждения.
func (r *ValidationResult) Messages() []string {
	out := make([]string, 0, len(r.Errors)+len(r.Warnings))
	out = append(out, r.Errors...)
	return append(out, r.Warnings...)
}

// ReconcileResult — итог сверки с табличным хранилищем.
// При непустом Errors RowsWritten равен нулю.
type ReconcileResult struct {
	RowsWritten int
	RowsDeleted int
	// Errors — ошибки, прервавшие сверку
	Errors []string
	// Warnings — строки, которые не удалось удалить по одной
	Warnings []string
}

// Failed сообщает, завершилась ли сверка ошибкой.
func (r *ReconcileResult) Failed() bool {
	return len(r.Errors) > 0
}
