package errors

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ErrorResponse 표준 에러 응답 구조
type ErrorResponse struct {
	Error   string `json:"error"`            // 에러 코드 (프론트엔드에서 매핑용)
	Message string `json:"message"`          // 사용자 친화적 메시지 (한글)
	Action  string `json:"action,omitempty"` // 후속 동작 (sign_in, retry)
	Route   string `json:"route,omitempty"`  // sign_in 일 때 이동할 경로
}

// RespondWithError 에러 응답 헬퍼
// statusCode: HTTP 상태 코드
// errorCode: 에러 코드 상수 (codes.go 참조)
// message: 사용자에게 보여질 한글 메시지
func RespondWithError(c *gin.Context, statusCode int, errorCode string, message string) {
	c.JSON(statusCode, ErrorResponse{
		Error:   errorCode,
		Message: message,
	})
}

// RespondWithInfo ParseError 결과로 응답
func RespondWithInfo(c *gin.Context, info ErrorInfo) {
	c.JSON(info.Status, ErrorResponse{
		Error:   info.Code,
		Message: info.Message,
		Action:  info.Action,
	})
}

// 자주 사용하는 에러 응답 단축 함수들

// SignInRequired 로그인 유도 응답. 프론트엔드는 route 로 이동함
func SignInRequired(c *gin.Context, route string) {
	c.JSON(http.StatusUnauthorized, ErrorResponse{
		Error:   AuthUnauthorized,
		Message: "로그인이 필요합니다",
		Action:  ActionSignIn,
		Route:   route,
	})
}

func Unauthorized(c *gin.Context, message string) {
	if message == "" {
		message = "로그인이 필요합니다"
	}
	RespondWithError(c, http.StatusUnauthorized, AuthUnauthorized, message)
}

func BadRequest(c *gin.Context, errorCode string, message string) {
	RespondWithError(c, http.StatusBadRequest, errorCode, message)
}

func InternalError(c *gin.Context, message string) {
	if message == "" {
		message = "서버 오류가 발생했습니다. 잠시 후 다시 시도해주세요"
	}
	RespondWithError(c, http.StatusInternalServerError, InternalServerError, message)
}

// ValidationError 검증 에러 (선택: 여러 필드 검증 오류)
type ValidationError struct {
	Error   string            `json:"error"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"` // 필드별 오류 메시지
}

func RespondWithValidationError(c *gin.Context, fields map[string]string) {
	c.JSON(http.StatusBadRequest, ValidationError{
		Error:   ValidationInvalidInput,
		Message: "입력값이 올바르지 않습니다",
		Fields:  fields,
	})
}
