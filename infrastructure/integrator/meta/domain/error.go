package metadomain

import "fmt"

// ErrorResponse representa a estrutura de erro da API do Meta
type ErrorResponse struct {
	Error ErrorDetails `json:"error"`
}

type ErrorDetails struct {
	Message      string `json:"message"`
	Type         string `json:"type"`
	Code         int    `json:"code"`
	ErrorSubcode int    `json:"error_subcode,omitempty"`
	FBTraceID    string `json:"fbtrace_id"`
}

func (e *ErrorResponse) String() string {
	return fmt.Sprintf("meta: %s (code=%d subcode=%d trace=%s)", e.Error.Message, e.Error.Code, e.Error.ErrorSubcode, e.Error.FBTraceID)
}

// IsTokenExpired indica erro de token: código 190 ou OAuthException com subcódigos 460, 463 e 467
func (e *ErrorResponse) IsTokenExpired() bool {
	return e.Error.Code == 190 ||
		(e.Error.Type == "OAuthException" && (e.Error.ErrorSubcode == 460 || e.Error.ErrorSubcode == 463 || e.Error.ErrorSubcode == 467))
}

// IsRateLimited cobre os limites de chamadas por app, usuário e conta de anúncios
func (e *ErrorResponse) IsRateLimited() bool {
	switch e.Error.Code {
	case 4, 17, 32, 613, 80000, 80004:
		return true
	}
	return false
}
