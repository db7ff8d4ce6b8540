package auth

import "encoding/json"

type serviceErrorBody struct {
	ErrorCode        string   `json:"errorCode"`
	ErrorMessage     string   `json:"errorMessage"`
	NumericErrorCode int      `json:"numericErrorCode"`
	MessageVars      []string `json:"messageVars"`
	Challenge        string   `json:"challenge"`
	OAuthError       string   `json:"error"`
	ErrorDescription string   `json:"error_description"`
}

// DecodeResponse maps a raw service response to either its body (2xx) or a
// typed error. Unrecognized or malformed error bodies still produce a
// *ServiceError carrying the raw status and payload for diagnostics.
func DecodeResponse(status int, body []byte) ([]byte, error) {
	if status >= 200 && status < 300 {
		return body, nil
	}

	return nil, decodeServiceError(status, body)
}

func decodeServiceError(status int, body []byte) error {
	var payload serviceErrorBody
	_ = json.Unmarshal(body, &payload)

	svcErr := ServiceError{
		StatusCode:  status,
		Code:        payload.ErrorCode,
		Message:     payload.ErrorMessage,
		NumericCode: payload.NumericErrorCode,
		Raw:         body,
	}

	if svcErr.Code == "" {
		svcErr.Code = payload.OAuthError
	}

	if svcErr.Message == "" {
		svcErr.Message = payload.ErrorDescription
	}

	if svcErr.Message == "" && len(body) > 0 {
		svcErr.Message = string(body)
	}

	if payload.ErrorCode == CodeTwoFactorRequired {
		return &TwoFactorError{ServiceError: svcErr, Challenge: payload.Challenge}
	}

	return &svcErr
}
