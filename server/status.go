package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/motongxue/stopAndWaitTransfer/models"
	"github.com/motongxue/stopAndWaitTransfer/store"
)

// NewStatusRouter 传输状态查询接口
func NewStatusRouter(s store.Store) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())
	h := &statusHandler{store: s}
	engine.GET("/healthz", h.healthz)
	engine.GET("/transfers", h.listTransfers)
	engine.GET("/transfers/:id", h.getFileTransferInfo)
	return engine
}

type statusHandler struct {
	store store.Store
}

func (h *statusHandler) healthz(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, models.ResponseData{Code: http.StatusOK, Message: "ok"})
}

func (h *statusHandler) listTransfers(ctx *gin.Context) {
	list, err := h.store.List(ctx.Request.Context())
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, models.ResponseData{Code: http.StatusInternalServerError, Message: err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, models.ResponseData{Code: http.StatusOK, Message: "ok", Data: list})
}

// getFileTransferInfo 获取文件传输信息
func (h *statusHandler) getFileTransferInfo(ctx *gin.Context) {
	meta, err := h.store.Get(ctx.Request.Context(), ctx.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		ctx.JSON(http.StatusNotFound, models.ResponseData{Code: http.StatusNotFound, Message: err.Error()})
		return
	}
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, models.ResponseData{Code: http.StatusInternalServerError, Message: err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, models.ResponseData{
		Code:    http.StatusOK,
		Message: "ok",
		Data:    models.TransferStatus{Metadata: meta, Progress: meta.Info()},
	})
}
