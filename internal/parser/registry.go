package parser

import (
	"strconv"
	"strings"
)

// RegistryValue ищет первое вхождение `"<key>" = <value>` в дампе реестра
// устройств. Ключ передается без кавычек. Шаблон с пробелами вокруг `=`
// совпадает только с ключами верхнего уровня: вложенные словари выводятся
// как `"Key"=value` без пробелов.
func RegistryValue(text, key string) (string, bool) {
	pattern := `"` + key + `" = `

	// Длинные строки (например, BatteryData) не ограничивают разбор
	for _, line := range strings.Split(text, "\n") {
		pos := strings.Index(line, pattern)
		if pos < 0 {
			continue
		}

		value := strings.TrimSpace(line[pos+len(pattern):])
		value = strings.Trim(value, `"`)
		if fields := strings.Fields(value); len(fields) > 0 {
			value = fields[0]
		}
		return value, true
	}
	return "", false
}

// RegistryFloat возвращает значение ключа как float64
func RegistryFloat(text, key string) (float64, bool) {
	raw, ok := RegistryValue(text, key)
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// RegistryUint возвращает значение ключа как uint64
func RegistryUint(text, key string) (uint64, bool) {
	raw, ok := RegistryValue(text, key)
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// RegistryBool трактует "Yes" и "1" как true; отсутствующий ключ дает false
func RegistryBool(text, key string) bool {
	raw, ok := RegistryValue(text, key)
	return ok && (raw == "Yes" || raw == "1")
}
