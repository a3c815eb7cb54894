package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"ai-chat-go/pkg/log"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// bindChatJSON 绑定并校验 JSON 请求体。
// 校验发生在任何副作用之前，失败时写出带字段级明细的 400 响应并返回 false。
func bindChatJSON(c *gin.Context, req interface{}) bool {
	err := c.ShouldBindJSON(req)
	if err == nil {
		return true
	}
	log.Warnf("%s: invalid request payload: %v", c.FullPath(), err)

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fieldErrors := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fieldErrors[jsonFieldName(fe.Field())] = fieldErrorMessage(fe)
		}
		c.JSON(http.StatusBadRequest, gin.H{"errors": fieldErrors})
		return false
	}

	c.JSON(http.StatusBadRequest, gin.H{"errors": gin.H{"body": "Invalid request body"}})
	return false
}

func validationErrorBody(field, message string) gin.H {
	return gin.H{"errors": gin.H{field: message}}
}

func fieldErrorMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required.", fe.Field())
	case "max":
		return fmt.Sprintf("%s is too long (max %s characters)", fe.Field(), fe.Param())
	case "uuid":
		return "Invalid Conversation ID"
	default:
		return fmt.Sprintf("%s is invalid.", fe.Field())
	}
}

// jsonFieldName 将结构体字段名转成请求体里的 JSON 字段名（首字母小写）。
func jsonFieldName(field string) string {
	if field == "" {
		return field
	}
	return strings.ToLower(field[:1]) + field[1:]
}

func isValidUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
