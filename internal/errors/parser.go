package errors

import (
	"context"
	"errors"
	"net/http"

	"github.com/ikkim/udonggeum-cartsync/internal/cart"
	"github.com/ikkim/udonggeum-cartsync/internal/remote"
)

// ErrorInfo 에러 정보 구조
type ErrorInfo struct {
	Status  int    // HTTP 상태 코드
	Code    string // 에러 코드 (codes.go 참조)
	Message string // 사용자 친화적 메시지
	Action  string // 후속 동작
}

// ParseError 장바구니/원격 에러를 응답 코드와 메시지로 변환
// 원격 서버의 원문 메시지는 노출하지 않음
func ParseError(err error) ErrorInfo {
	switch {
	case err == nil:
		return ErrorInfo{
			Status:  http.StatusInternalServerError,
			Code:    InternalServerError,
			Message: "서버 오류가 발생했습니다",
		}

	case errors.Is(err, cart.ErrUnauthenticated), errors.Is(err, remote.ErrUnauthorized):
		return ErrorInfo{
			Status:  http.StatusUnauthorized,
			Code:    AuthUnauthorized,
			Message: "로그인이 필요합니다",
			Action:  ActionSignIn,
		}

	case errors.Is(err, cart.ErrInvalidQuantity):
		return ErrorInfo{
			Status:  http.StatusBadRequest,
			Code:    ValidationInvalidRange,
			Message: "수량은 1개 이상이어야 합니다",
		}

	case errors.Is(err, cart.ErrInvalidItem):
		return ErrorInfo{
			Status:  http.StatusBadRequest,
			Code:    ValidationInvalidID,
			Message: "상품 ID가 필요합니다",
		}

	case errors.Is(err, context.DeadlineExceeded):
		return ErrorInfo{
			Status:  http.StatusGatewayTimeout,
			Code:    InternalTimeout,
			Message: "요청 시간이 초과되었습니다. 잠시 후 다시 시도해주세요",
			Action:  ActionRetry,
		}

	case errors.Is(err, cart.ErrSyncFailed):
		return ErrorInfo{
			Status:  http.StatusBadGateway,
			Code:    CartSyncFailed,
			Message: "장바구니를 저장하지 못했습니다. 다시 시도해주세요",
			Action:  ActionRetry,
		}

	case errors.Is(err, remote.ErrNetworkError), errors.Is(err, remote.ErrRemoteStatus), errors.Is(err, remote.ErrInvalidResponse):
		return ErrorInfo{
			Status:  http.StatusBadGateway,
			Code:    InternalExternalAPI,
			Message: "외부 서비스 연결에 실패했습니다. 잠시 후 다시 시도해주세요",
			Action:  ActionRetry,
		}
	}

	return ErrorInfo{
		Status:  http.StatusInternalServerError,
		Code:    InternalServerError,
		Message: "서버 오류가 발생했습니다. 잠시 후 다시 시도해주세요",
	}
}
