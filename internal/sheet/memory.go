package sheet

import (
	"context"
	"fmt"
	"sync"
)

// Memory — табличное хранилище в памяти процесса.
// Потокобезопасно; данные теряются при перезапуске.
type Memory struct {
	mu   sync.Mutex
	rows [][]string
}

// NewMemory создаёт хранилище с начальными строками (первая — заголовок).
func NewMemory(rows ...[]string) *Memory {
	m := &Memory{}
	for _, r := range rows {
		m.rows = append(m.rows, append([]string(nil), r...))
	}
	return m
}

// ReadHeader возвращает копию заголовка.
func (m *Memory) ReadHeader(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.rows) == 0 {
		return nil, nil
	}
	return append([]string(nil), m.rows[0]...), nil
}

// WriteHeader записывает строку 1.
func (m *Memory) WriteHeader(_ context.Context, header []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	h := append([]string(nil), header...)
	if len(m.rows) == 0 {
		m.rows = [][]string{h}
		return nil
	}
	m.rows[0] = h
	return nil
}

// ReadAllRows возвращает копию всех строк.
func (m *Memory) ReadAllRows(_ context.Context) ([][]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.snapshot(), nil
}

// AppendRows дописывает строки в конец.
func (m *Memory) AppendRows(_ context.Context, rows [][]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range rows {
		m.rows = append(m.rows, append([]string(nil), r...))
	}
	return nil
}

// DeleteRows удаляет строки в переданном порядке. Индексы проверяются
// до удаления: строка 1 (заголовок) и индексы вне таблицы — ошибка.
func (m *Memory) DeleteRows(_ context.Context, indices []int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	size := len(m.rows)
	for _, idx := range indices {
		if idx < 2 || idx > size {
			return fmt.Errorf("индекс строки %d вне диапазона 2..%d", idx, size)
		}
	}
	for _, idx := range indices {
		i := idx - 1
		if i >= len(m.rows) {
			return fmt.Errorf("индекс строки %d вне диапазона после сдвига", idx)
		}
		m.rows = append(m.rows[:i], m.rows[i+1:]...)
	}
	return nil
}

// Clear удаляет все строки.
func (m *Memory) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.rows = nil
	return nil
}

// Rows возвращает копию содержимого (для тестов и диагностики).
func (m *Memory) Rows() [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.snapshot()
}

func (m *Memory) snapshot() [][]string {
	out := make([][]string, len(m.rows))
	for i, r := range m.rows {
		out[i] = append([]string(nil), r...)
	}
	return out
}
