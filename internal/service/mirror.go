package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/qs3c/sage_server/internal/identity"
	"github.com/qs3c/sage_server/internal/pkg/metrics"
)

// 镜像同步来源
const (
	mirrorSourceBilling   = "billing"
	mirrorSourcePromo     = "promo"
	mirrorSourceAdmin     = "admin"
	mirrorSourceSweep     = "sweep"
	mirrorSourceReconcile = "reconcile"
)

// syncMirror 写入身份提供方的等级镜像，失败只记录，不影响账本
func syncMirror(ctx context.Context, provider identity.Provider, log *zap.Logger, source, identityID, tier string) error {
	if err := provider.SyncTier(ctx, identityID, tier); err != nil {
		metrics.MirrorSyncFailuresTotal.WithLabelValues(source).Inc()
		log.Warn("tier mirror sync failed",
			zap.String("source", source),
			zap.String("identity_id", identityID),
			zap.String("tier", tier),
			zap.Error(err))
		return err
	}
	return nil
}
