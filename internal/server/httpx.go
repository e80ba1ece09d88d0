package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/jvs-project/timelock/pkg/errclass"
)

// Codes used only by the HTTP layer.
const (
	codeUnauthenticated = "E_UNAUTHENTICATED"
	codeBadRequest      = "E_BAD_REQUEST"
	codeInternal        = "E_INTERNAL"
)

const maxBody = 1 << 16

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

var statusByCode = map[string]int{
	errclass.ErrInvalidUnlockTime.Code:    http.StatusBadRequest,
	errclass.ErrInvalidDepositAmount.Code: http.StatusBadRequest,
	errclass.ErrInvalidAddress.Code:       http.StatusBadRequest,
	errclass.ErrUnauthorizedCaller.Code:   http.StatusForbidden,
	errclass.ErrFundsStillLocked.Code:     http.StatusLocked,
	errclass.ErrDepositsDisabled.Code:     http.StatusConflict,
	errclass.ErrNoFundsAvailable.Code:     http.StatusConflict,
	errclass.ErrReentrantCall.Code:        http.StatusConflict,
	errclass.ErrTransferFailed.Code:       http.StatusBadGateway,
	errclass.ErrInsufficientFunds.Code:    http.StatusUnprocessableEntity,
	errclass.ErrBalanceOverflow.Code:      http.StatusUnprocessableEntity,
}

// StatusFor maps an error to its HTTP status.
func StatusFor(err error) int {
	if s, ok := statusByCode[errclass.CodeOf(err)]; ok {
		return s
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorBody{Code: code, Message: msg})
}

func writeVaultError(w http.ResponseWriter, err error) {
	var ve *errclass.VaultError
	if errors.As(err, &ve) {
		writeError(w, StatusFor(err), ve.Code, ve.Message)
		return
	}
	writeError(w, http.StatusInternalServerError, codeInternal, err.Error())
}

func readJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return err
	}
	return nil
}
