package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const maxUploadSize = 10 << 20

var allowedUploadExt = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
	".pdf":  true,
}

// UploadFile сохраняет фото лицензии или мотоцикла в uploadDir/yyyy/mm/dd
func UploadFile(uploadDir string) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Ограничиваем тело до разбора multipart: запас под заголовки частей
		limit := int64(maxUploadSize + 1<<20)
		if c.Request.ContentLength > limit {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Файл слишком большой"})
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)

		// Получаем файл из запроса
		file, err := c.FormFile("file")
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Файл слишком большой"})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": "Файл не найден"})
			return
		}

		if file.Size > maxUploadSize {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Файл слишком большой"})
			return
		}

		ext := strings.ToLower(filepath.Ext(file.Filename))
		if !allowedUploadExt[ext] {
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"message": "Недопустимый тип файла",
				"errors":  gin.H{"file": []string{"Допустимы jpg, jpeg, png, webp, pdf"}},
			})
			return
		}
		newFileName := uuid.NewString() + ext

		// Поддиректория по дате
		now := time.Now()
		dateDir := filepath.Join(uploadDir, now.Format("2006/01/02"))
		if err := os.MkdirAll(dateDir, 0o755); err != nil {
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Ошибка при создании директории"})
			return
		}

		if err := c.SaveUploadedFile(file, filepath.Join(dateDir, newFileName)); err != nil {
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Ошибка при сохранении файла"})
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"url": fmt.Sprintf("/uploads/%s/%s", now.Format("2006/01/02"), newFileName),
		})
	}
}
