// Package testutil содержит общие помощники для тестов.
package testutil

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"
)

// AssertEqual проверяет равенство значений
func AssertEqual(t *testing.T, expected, actual interface{}, message string) {
	t.Helper()
	if !reflect.DeepEqual(expected, actual) {
		t.Errorf("%s: expected %v, got %v", message, expected, actual)
	}
}

// AssertNoError проверяет отсутствие ошибки и прерывает тест
func AssertNoError(t *testing.T, err error, message string) {
	t.Helper()
	if err != nil {
		t.Fatalf("%s: unexpected error: %v", message, err)
	}
}

// AssertErrorIs проверяет, что ошибка соответствует target по errors.Is
func AssertErrorIs(t *testing.T, err, target error, message string) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Fatalf("%s: expected error %v, got %v", message, target, err)
	}
}

// TestContext создает контекст для тестов, который отменяется по завершении теста
func TestContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// FixedClock возвращает функцию времени, которая всегда отдает t
func FixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
