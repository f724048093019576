package settlementstore

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/chainsafe/switchly-settlement/pkg/bridge"
	"github.com/chainsafe/switchly-settlement/pkg/chain"
	"github.com/chainsafe/switchly-settlement/pkg/settlement"
)

// SettlementDao maps directly to the 'settlements' table in PostgreSQL.
// Probe observations are stored as jsonb snapshots.
type SettlementDao struct {
	bun.BaseModel `bun:"table:settlements,alias:s"`
	ID            uuid.UUID       `bun:"id,pk,type:uuid"`
	SourceChain   string          `bun:"source_chain,notnull,type:varchar(16)"`
	SourceHash    string          `bun:"source_hash,notnull,type:varchar(128)"`
	DestChain     string          `bun:"dest_chain,notnull,type:varchar(16)"`
	DestAddress   string          `bun:"dest_address,notnull,type:varchar(128)"`
	Memo          *string         `bun:"memo,type:varchar(255)"`
	State         string          `bun:"state,notnull,type:varchar(32)"`
	FailureReason *string         `bun:"failure_reason,type:varchar(32)"`
	Cancelled     bool            `bun:"cancelled,notnull,default:false"`
	Polls         int             `bun:"polls,notnull,default:0"`
	SourceTx      *chain.TxStatus `bun:"source_tx,type:jsonb"`
	BridgeAction  *bridge.Action  `bun:"bridge_action,type:jsonb"`
	TargetTx      *chain.TxStatus `bun:"target_tx,type:jsonb"`
	StartedAt     time.Time       `bun:"started_at,notnull"`
	UpdatedAt     time.Time       `bun:"updated_at,notnull"`
}

func toSettlementDao(st *settlement.Status) *SettlementDao {
	dao := &SettlementDao{
		ID:           st.ID,
		SourceChain:  st.Request.SourceChain,
		SourceHash:   st.Request.SourceHash,
		DestChain:    st.Request.DestChain,
		DestAddress:  st.Request.DestAddress,
		State:        string(st.State),
		Cancelled:    st.Cancelled,
		Polls:        st.Polls,
		SourceTx:     st.Source,
		BridgeAction: st.Action,
		TargetTx:     st.Target,
		StartedAt:    st.StartedAt,
		UpdatedAt:    st.UpdatedAt,
	}
	if st.Request.Memo != "" {
		dao.Memo = &st.Request.Memo
	}
	if st.Reason != settlement.ReasonNone {
		reason := string(st.Reason)
		dao.FailureReason = &reason
	}
	return dao
}

func toStatus(dao *SettlementDao) *settlement.Status {
	st := &settlement.Status{
		ID: dao.ID,
		Request: settlement.Request{
			SourceChain: dao.SourceChain,
			SourceHash:  dao.SourceHash,
			DestChain:   dao.DestChain,
			DestAddress: dao.DestAddress,
		},
		State:     settlement.State(dao.State),
		Cancelled: dao.Cancelled,
		Polls:     dao.Polls,
		Source:    dao.SourceTx,
		Action:    dao.BridgeAction,
		Target:    dao.TargetTx,
		StartedAt: dao.StartedAt.UTC(),
		UpdatedAt: dao.UpdatedAt.UTC(),
	}
	if dao.Memo != nil {
		st.Request.Memo = *dao.Memo
	}
	if dao.FailureReason != nil {
		st.Reason = settlement.FailureReason(*dao.FailureReason)
	}
	return st
}
