// Package handler is the HTTP surface for statement parsing and import.
package handler

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fintrail/statement-ingest/internal/domain/ledger"
	"github.com/fintrail/statement-ingest/internal/domain/statement"
	"github.com/fintrail/statement-ingest/internal/domain/statement/extractor"
	"github.com/fintrail/statement-ingest/pkg/money"
	"github.com/fintrail/statement-ingest/pkg/storage"
)

// StatementHandler serves the parse and import endpoints.
type StatementHandler struct {
	parser         *statement.Service
	importer       *ledger.Service
	archive        storage.Archive
	maxUploadBytes int64
	logger         *slog.Logger
}

// NewStatementHandler creates the statement handler. archive may be nil to
// disable upload archiving.
func NewStatementHandler(parser *statement.Service, importer *ledger.Service, archive storage.Archive, maxUploadBytes int64, logger *slog.Logger) *StatementHandler {
	return &StatementHandler{
		parser:         parser,
		importer:       importer,
		archive:        archive,
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
	}
}

// parseJSONRequest is the JSON body for POST /statements/parse. Type selects
// how Data is interpreted; pdf defaults the extension, file and
// bank-statement require one.
type parseJSONRequest struct {
	Type           string `json:"type"`
	Data           string `json:"data"`
	Ext            string `json:"ext"`
	FileName       string `json:"fileName"`
	BankCode       string `json:"bankCode"`
	HolderName     string `json:"holderName"`
	Currency       string `json:"currency"`
	OpeningBalance string `json:"openingBalance"`
	Debug          bool   `json:"debug"`
}

type parseMetadata struct {
	BankCode       string `json:"bankCode"`
	AccountNumber  string `json:"accountNumber,omitempty"`
	Currency       string `json:"currency"`
	OpeningBalance string `json:"openingBalance,omitempty"`
	ClosingBalance string `json:"closingBalance,omitempty"`
	UploadID       string `json:"uploadId,omitempty"`
}

type parseFailureResponse struct {
	Success     bool     `json:"success"`
	Error       string   `json:"error"`
	FailedStage string   `json:"failedStage,omitempty"`
	Diagnostics []string `json:"diagnostics,omitempty"`
	DebugLogs   []string `json:"debug_logs,omitempty"`
}

type parseResponse struct {
	Success      bool                 `json:"success"`
	Transactions []ledger.Transaction `json:"transactions"`
	Count        int                  `json:"count"`
	Metadata     parseMetadata        `json:"metadata"`
	Diagnostics  []string             `json:"diagnostics,omitempty"`
	DebugLogs    []string             `json:"debug_logs,omitempty"`
}

// Parse handles POST /api/v1/statements/parse. Accepts either a multipart
// upload (field "file") or a JSON body with base64 data.
func (h *StatementHandler) Parse(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	req, err := h.decodeParseRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.parser.Parse(r.Context(), req)
	if err != nil {
		status := http.StatusUnprocessableEntity
		if errors.Is(err, extractor.ErrUnsupportedFormat) {
			status = http.StatusUnsupportedMediaType
		}
		// Hard pipeline failure: the result still carries the diagnostics
		// and debug logs collected up to the failed stage, the material a
		// caller onboarding a new bank needs to see.
		writeJSON(w, status, parseFailureResponse{
			Success:     false,
			Error:       err.Error(),
			FailedStage: result.FailedStage,
			Diagnostics: result.Diagnostics,
			DebugLogs:   result.DebugLogs,
		})
		return
	}

	resp := parseResponse{
		Success:      true,
		Transactions: result.Transactions,
		Count:        len(result.Transactions),
		Metadata: parseMetadata{
			BankCode:       result.BankCode,
			AccountNumber:  result.AccountNumber,
			Currency:       result.Currency,
			OpeningBalance: money.FormatDecimal(result.OpeningBalance, result.Currency),
			ClosingBalance: money.FormatDecimal(result.ClosingBalance, result.Currency),
			UploadID:       h.archiveUpload(r.Context(), req, result.BankCode),
		},
		Diagnostics: result.Diagnostics,
		DebugLogs:   result.DebugLogs,
	}
	if resp.Transactions == nil {
		resp.Transactions = []ledger.Transaction{}
	}
	writeJSON(w, http.StatusOK, resp)
}

// archiveUpload stores the raw bytes for replay. Archiving never affects the
// parse outcome; failures are logged and the upload id stays empty.
func (h *StatementHandler) archiveUpload(ctx context.Context, req statement.ParseRequest, bankCode string) string {
	if h.archive == nil {
		return ""
	}
	name := req.FileName
	if name == "" {
		name = "statement" + req.Ext
	}
	info, err := h.archive.Save(ctx, name, req.Ext, bankCode, bytes.NewReader(req.Data))
	if err != nil {
		h.logger.Warn("archive upload", slog.Any("error", err))
		return ""
	}
	return info.ID.String()
}

// decodeParseRequest handles both upload shapes.
func (h *StatementHandler) decodeParseRequest(r *http.Request) (statement.ParseRequest, error) {
	contentType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if contentType == "multipart/form-data" {
		return h.decodeMultipart(r)
	}

	var body parseJSONRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return statement.ParseRequest{}, errors.New("invalid JSON body")
	}
	if body.Data == "" {
		return statement.ParseRequest{}, errors.New("data is required")
	}

	data, err := base64.StdEncoding.DecodeString(body.Data)
	if err != nil {
		return statement.ParseRequest{}, errors.New("data must be base64 encoded")
	}

	ext := body.Ext
	if ext == "" && body.FileName != "" {
		ext = filepath.Ext(body.FileName)
	}
	switch body.Type {
	case "pdf":
		if ext == "" {
			ext = ".pdf"
		}
	case "file", "bank-statement":
		if ext == "" {
			return statement.ParseRequest{}, errors.New("ext or fileName is required for type " + body.Type)
		}
	default:
		return statement.ParseRequest{}, errors.New("type must be one of pdf, file, bank-statement")
	}

	req := statement.ParseRequest{
		Data:       data,
		Ext:        ext,
		FileName:   body.FileName,
		BankHint:   strings.ToUpper(strings.TrimSpace(body.BankCode)),
		HolderName: body.HolderName,
		Currency:   body.Currency,
		Debug:      body.Debug,
	}
	if body.OpeningBalance != "" {
		opening, err := decimal.NewFromString(body.OpeningBalance)
		if err != nil {
			return statement.ParseRequest{}, errors.New("openingBalance must be a decimal number")
		}
		req.OpeningBalance = &opening
	}
	return req, nil
}

func (h *StatementHandler) decodeMultipart(r *http.Request) (statement.ParseRequest, error) {
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		return statement.ParseRequest{}, errors.New("upload too large or malformed")
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return statement.ParseRequest{}, errors.New("file field is required")
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return statement.ParseRequest{}, errors.New("read upload: " + err.Error())
	}

	ext := r.FormValue("ext")
	if ext == "" {
		ext = filepath.Ext(header.Filename)
	}
	if ext == "" {
		return statement.ParseRequest{}, errors.New("could not determine file extension")
	}

	return statement.ParseRequest{
		Data:       data,
		Ext:        ext,
		FileName:   header.Filename,
		BankHint:   strings.ToUpper(strings.TrimSpace(r.FormValue("bankCode"))),
		HolderName: r.FormValue("holderName"),
		Currency:   r.FormValue("currency"),
		Debug:      r.FormValue("debug") == "true",
	}, nil
}

// importRequest is the JSON body for POST /api/v1/statements/import.
type importRequest struct {
	UserID                 string               `json:"userId"`
	Records                []ledger.Transaction `json:"records"`
	Metadata               map[string]string    `json:"metadata"`
	UseAICategorization    bool                 `json:"useAICategorization"`
	ValidateBalance        bool                 `json:"validateBalance"`
	CategorizeInBackground bool                 `json:"categorizeInBackground"`
}

// Import handles POST /api/v1/statements/import.
func (h *StatementHandler) Import(w http.ResponseWriter, r *http.Request) {
	var body importRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	userID, err := uuid.Parse(body.UserID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "userId must be a UUID")
		return
	}

	result, err := h.importer.Import(r.Context(), ledger.ImportInput{
		UserID:                 userID,
		Records:                body.Records,
		Metadata:               body.Metadata,
		UseAICategorization:    body.UseAICategorization,
		ValidateBalance:        body.ValidateBalance,
		CategorizeInBackground: body.CategorizeInBackground,
	})
	switch {
	case errors.Is(err, ledger.ErrNoRecords):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, ledger.ErrBalanceValidation):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"success":         false,
			"error":           err.Error(),
			"balanceWarnings": result.BalanceWarnings,
		})
		return
	case err != nil:
		h.logger.Error("import failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "import failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":         true,
		"inserted":        result.Inserted,
		"duplicates":      result.Duplicates,
		"balanceWarnings": result.BalanceWarnings,
	})
}

// ListTransactions handles GET /api/v1/transactions?userId=...&from=...&to=...
func (h *StatementHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(r.URL.Query().Get("userId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "userId must be a UUID")
		return
	}

	var from, to time.Time
	if v := r.URL.Query().Get("from"); v != "" {
		if from, err = time.Parse(time.RFC3339, v); err != nil {
			writeError(w, http.StatusBadRequest, "from must be RFC3339")
			return
		}
	}
	if v := r.URL.Query().Get("to"); v != "" {
		if to, err = time.Parse(time.RFC3339, v); err != nil {
			writeError(w, http.StatusBadRequest, "to must be RFC3339")
			return
		}
	}

	txns, err := h.importer.List(r.Context(), userID, from, to)
	if err != nil {
		h.logger.Error("list transactions", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "list transactions failed")
		return
	}
	if txns == nil {
		txns = []ledger.Transaction{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"transactions": txns,
		"count":        len(txns),
	})
}

// DeleteTransaction handles DELETE /api/v1/transactions/{id}?userId=...
func (h *StatementHandler) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(r.URL.Query().Get("userId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "userId must be a UUID")
		return
	}
	txnID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "transaction id must be a UUID")
		return
	}

	if err := h.importer.Delete(r.Context(), userID, txnID); err != nil {
		if errors.Is(err, ledger.ErrTransactionNotFound) {
			writeError(w, http.StatusNotFound, "transaction not found")
			return
		}
		h.logger.Error("delete transaction", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "delete failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}
