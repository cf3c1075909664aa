package handler

import "net/http"

// Routes registers every statement endpoint on the mux.
func Routes(mux *http.ServeMux, stmt *StatementHandler, admin *AdminHandler) {
	mux.HandleFunc("POST /api/v1/statements/parse", stmt.Parse)
	mux.HandleFunc("POST /api/v1/statements/import", stmt.Import)
	mux.HandleFunc("GET /api/v1/transactions", stmt.ListTransactions)
	mux.HandleFunc("DELETE /api/v1/transactions/{id}", stmt.DeleteTransaction)

	mux.HandleFunc("POST /api/v1/admin/bank-configs", admin.UpsertConfig)
	mux.HandleFunc("GET /api/v1/admin/bank-configs", admin.ListConfigs)
	mux.HandleFunc("GET /api/v1/admin/bank-configs/{code}", admin.GetConfig)
	mux.HandleFunc("DELETE /api/v1/admin/bank-configs/{code}", admin.DeactivateConfig)
	mux.HandleFunc("POST /api/v1/admin/field-mappings", admin.SetFieldMapping)
	mux.HandleFunc("GET /api/v1/admin/field-mappings", admin.ListFieldMappings)
	mux.HandleFunc("GET /api/v1/admin/narrations/search", admin.SearchNarrations)
	mux.HandleFunc("GET /api/v1/admin/narrations/groups", admin.GroupNarrations)

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
}
