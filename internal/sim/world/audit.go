package world

type AuditLogger interface {
	WriteAudit(entry AuditEntry) error
}

// AuditEntry records one inventory operation or lifecycle event.
type AuditEntry struct {
	Tick   uint64 `json:"tick"`
	Actor  string `json:"actor"`
	Action string `json:"action"` // op name, or JOIN/LEAVE/STRANDED
	From   string `json:"from,omitempty"`
	To     string `json:"to,omitempty"`
	Item   string `json:"item,omitempty"`
	Count  int    `json:"count"`
	Code   string `json:"code,omitempty"`
	Reason string `json:"reason,omitempty"`
}

func (w *World) audit(e AuditEntry) {
	if w.auditLogger == nil {
		return
	}
	if err := w.auditLogger.WriteAudit(e); err != nil {
		w.logger.Printf("audit: %v", err)
	}
}
