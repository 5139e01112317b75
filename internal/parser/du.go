package parser

import (
	"strconv"
	"strings"
)

// ParseDuKilobytes разбирает вывод `du -sk <path>` ("123456\t/path") в байты
func ParseDuKilobytes(text string) uint64 {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return 0
	}
	kb, err := strconv.ParseUint(fields[0], 10, 64)
	if err != nil {
		return 0
	}
	return kb * 1024
}
