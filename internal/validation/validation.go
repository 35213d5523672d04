// Package validation содержит проверки пользовательского ввода.
package validation

import (
	"net/http"
	"strings"

	"github.com/shopspring/decimal"
)

// MaxImageSize ограничивает размер загружаемого изображения цели.
const MaxImageSize = 5 << 20 // 5 MiB

const maxGoalNameLength = 100

var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"image/gif":  true,
}

// IsValidGoalName проверяет, что название цели непустое и не длиннее лимита.
func IsValidGoalName(name string) bool {
	trimmed := strings.TrimSpace(name)
	return trimmed != "" && len(trimmed) <= maxGoalNameLength
}

// IsPositiveAmount проверяет, что сумма строго положительна.
func IsPositiveAmount(amount decimal.Decimal) bool {
	return amount.IsPositive()
}

// DetectImageType возвращает MIME-тип изображения по содержимому
// или пустую строку, если данные не являются поддерживаемым изображением.
func DetectImageType(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	contentType := http.DetectContentType(data)
	if !allowedImageTypes[contentType] {
		return ""
	}
	return contentType
}
