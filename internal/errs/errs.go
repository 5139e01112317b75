package errs

import (
	"errors"
	"fmt"
)

// Kind классифицирует ошибку ядра
type Kind uint8

const (
	// Failed неожиданный сбой (ошибка сигнала, привилегированной команды)
	Failed Kind = iota
	// NotFound процесс, команда или панель не найдены
	NotFound
	// PermissionDenied недостаточно прав
	PermissionDenied
	// SpawnFailed внешнюю утилиту не удалось запустить
	SpawnFailed
	// EmptyOutput утилита отработала, но вывод пуст (например, нет батареи)
	EmptyOutput
	// ParseDegraded вывод не удалось разобрать
	ParseDegraded
	// Cancelled операция отменена пользователем или по таймауту
	Cancelled
	// InvalidArgument некорректные аргументы команды
	InvalidArgument
)

var kindNames = map[Kind]string{
	Failed:           "failed",
	NotFound:         "not_found",
	PermissionDenied: "permission_denied",
	SpawnFailed:      "spawn_failed",
	EmptyOutput:      "empty_output",
	ParseDegraded:    "parse_degraded",
	Cancelled:        "cancelled",
	InvalidArgument:  "invalid_argument",
}

// String возвращает имя вида ошибки
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Error ошибка с тегом вида и контекстом операции
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

// Error возвращает человекочитаемое сообщение
func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	} else if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if msg == "" {
		msg = e.Kind.String()
	}
	return msg
}

// Unwrap возвращает исходную ошибку
func (e *Error) Unwrap() error {
	return e.Err
}

// Is сравнивает ошибки по виду: errors.Is(err, &Error{Kind: NotFound})
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Op == "" || t.Op == e.Op)
}

// New создает ошибку заданного вида
func New(kind Kind, op, msg string) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg}
}

// Wrap оборачивает err с видом и сообщением
func Wrap(kind Kind, op string, err error, msg string) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg, Err: err}
}

// KindOf возвращает вид ошибки; для чужих ошибок Failed
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Failed
}

// IsKind проверяет вид ошибки
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
