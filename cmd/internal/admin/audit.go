package admin

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Auditor records every admin override as a structured log line and, when a
// database pool is available, a row in gate.audit_log:
//
//	CREATE TABLE gate.audit_log (
//	    id          bigserial PRIMARY KEY,
//	    action      text NOT NULL,
//	    principal   text,
//	    created_at  timestamptz NOT NULL DEFAULT now(),
//	    admin_ip    text,
//	    meta        jsonb
//	);
//
// Audit failures never fail the override itself.
type Auditor struct {
	pool *pgxpool.Pool // nil when running on the in-memory store
	log  *slog.Logger
}

func NewAuditor(pool *pgxpool.Pool, log *slog.Logger) *Auditor {
	if log == nil {
		log = slog.Default()
	}
	return &Auditor{pool: pool, log: log.With("module", "admin")}
}

func (a *Auditor) record(ctx context.Context, action, principal, adminIP string, meta map[string]any) {
	action = strings.TrimSpace(action)
	if action == "" {
		return
	}

	attrs := []any{"action", action}
	if principal != "" {
		attrs = append(attrs, "principal", principal)
	}
	if adminIP != "" {
		attrs = append(attrs, "admin_ip", adminIP)
	}
	for k, v := range meta {
		attrs = append(attrs, k, v)
	}
	a.log.Info("admin.audit", attrs...)

	if a.pool == nil {
		return
	}

	var metaVal *string
	if len(meta) > 0 {
		if b, err := json.Marshal(meta); err == nil {
			s := string(b)
			metaVal = &s
		}
	}

	_, err := a.pool.Exec(ctx, `
		INSERT INTO gate.audit_log (
			action, principal, created_at, admin_ip, meta
		) VALUES ($1, $2, now(), $3, $4::jsonb)
	`, action, nullIfEmpty(principal), nullIfEmpty(adminIP), metaVal)
	if err != nil {
		a.log.Error("admin.audit.insert.fail", "err", err, "action", action)
	}
}

func nullIfEmpty(s string) any {
	v := strings.TrimSpace(s)
	if v == "" {
		return nil
	}
	return v
}
