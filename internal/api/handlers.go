package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/minisc/minisc/internal/addons/helm"
	"github.com/minisc/minisc/internal/cluster"
	"github.com/minisc/minisc/internal/config"
	"github.com/minisc/minisc/internal/provisioning/destroy"
)

// Service runs cluster workflows. *cluster.Manager implements it.
type Service interface {
	Deploy(ctx context.Context, cfg *config.Config, component string, tokens cluster.TokenSource) (*cluster.Deployment, error)
	Teardown(ctx context.Context, cfg *config.Config) (*destroy.Result, error)
	ClusterInfo(ctx context.Context, cfg *config.Config) (*helm.ClusterInfo, error)
}

// BaseConfig returns the configuration a request starts from.
type BaseConfig func() (*config.Config, error)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Message   string `json:"message"`
	Detail    string `json:"detail"`
	RequestID string `json:"request_id,omitempty"`
}

// HeadNodeResponse is returned by POST /deploy/head-node.
type HeadNodeResponse struct {
	Message        string `json:"message"`
	Provider       string `json:"provider"`
	ClusterName    string `json:"cluster_name"`
	State          string `json:"state"`
	InstanceID     string `json:"instance_id"`
	HeadNodeIP     string `json:"head_node_ip"`
	HeadNodePrivIP string `json:"head_node_private_ip"`
}

// WorkerNodesResponse is returned by POST /deploy/worker-nodes.
type WorkerNodesResponse struct {
	Message     string   `json:"message"`
	Provider    string   `json:"provider"`
	ClusterName string   `json:"cluster_name"`
	WorkerCount int      `json:"worker_count"`
	InstanceIDs []string `json:"instance_ids"`
}

// ClusterInfoResponse is returned by POST /cluster-info.
type ClusterInfoResponse struct {
	Message  string `json:"message"`
	Provider string `json:"provider"`
	Nodes    string `json:"nodes"`
	Releases string `json:"releases"`
	Pods     string `json:"pods"`
}

// TeardownResponse is returned by POST /teardown.
type TeardownResponse struct {
	Message  string   `json:"message"`
	Provider string   `json:"provider"`
	Deleted  []string `json:"deleted"`
	Failed   []string `json:"failed,omitempty"`
}

type handler struct {
	service Service
	base    BaseConfig
}

// config binds the JSON body into req and builds the request configuration.
// It writes the 400 response itself and returns nil on failure.
func (h *handler) config(c *gin.Context, req interface{ apply(*config.Config) error }) *config.Config {
	if err := c.ShouldBindJSON(req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body", err)
		return nil
	}
	cfg, err := h.base()
	if err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to load base configuration", err)
		return nil
	}
	if err := req.apply(cfg); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid cluster configuration", err)
		return nil
	}
	return cfg
}

func (h *handler) deployHead(c *gin.Context) {
	req := &ClusterRequest{}
	cfg := h.config(c, req)
	if cfg == nil {
		return
	}

	dep, err := h.service.Deploy(c.Request.Context(), cfg, cluster.ComponentHead, nil)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "Head node deployment failed", err)
		return
	}

	resp := HeadNodeResponse{
		Message:     "Kubernetes head node deployment complete!",
		Provider:    dep.Provider,
		ClusterName: dep.ClusterTag,
		State:       string(dep.State),
	}
	if dep.Head != nil {
		resp.InstanceID = dep.Head.InstanceID
		resp.HeadNodeIP = dep.Head.PublicAddress
		resp.HeadNodePrivIP = dep.Head.PrivateAddress
	}
	c.JSON(http.StatusOK, resp)
}

func (h *handler) deployWorkers(c *gin.Context) {
	req := &WorkerNodesRequest{}
	cfg := h.config(c, req)
	if cfg == nil {
		return
	}

	dep, err := h.service.Deploy(c.Request.Context(), cfg, cluster.ComponentWorkers, cluster.StaticToken(req.token()))
	if err != nil {
		respondError(c, http.StatusInternalServerError, "Worker nodes deployment failed", err)
		return
	}

	ids := make([]string, 0, len(dep.Workers))
	for _, w := range dep.Workers {
		ids = append(ids, w.InstanceID)
	}
	c.JSON(http.StatusOK, WorkerNodesResponse{
		Message:     fmt.Sprintf("%d worker nodes deployment complete!", len(ids)),
		Provider:    dep.Provider,
		ClusterName: dep.ClusterTag,
		WorkerCount: len(ids),
		InstanceIDs: ids,
	})
}

func (h *handler) clusterInfo(c *gin.Context) {
	req := &ClusterRequest{}
	cfg := h.config(c, req)
	if cfg == nil {
		return
	}

	info, err := h.service.ClusterInfo(c.Request.Context(), cfg)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to retrieve cluster information", err)
		return
	}
	c.JSON(http.StatusOK, ClusterInfoResponse{
		Message:  "Cluster information retrieved successfully!",
		Provider: cfg.Provider,
		Nodes:    info.Nodes,
		Releases: info.Releases,
		Pods:     info.Pods,
	})
}

func (h *handler) teardown(c *gin.Context) {
	req := &ClusterRequest{}
	cfg := h.config(c, req)
	if cfg == nil {
		return
	}

	res, err := h.service.Teardown(c.Request.Context(), cfg)
	if err != nil && res == nil {
		respondError(c, http.StatusInternalServerError, "Teardown failed", err)
		return
	}

	resp := TeardownResponse{
		Message:  "Cluster teardown complete!",
		Provider: cfg.Provider,
		Deleted:  make([]string, 0, len(res.Deleted)),
	}
	for _, d := range res.Deleted {
		resp.Deleted = append(resp.Deleted, d.String())
	}
	if err != nil {
		for _, f := range res.Failed {
			resp.Failed = append(resp.Failed, f.String())
		}
		resp.Message = "Cluster teardown incomplete; run it again to retry"
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"message":  resp.Message,
			"detail":   err.Error(),
			"provider": resp.Provider,
			"deleted":  resp.Deleted,
			"failed":   resp.Failed,
		})
		return
	}
	c.JSON(http.StatusOK, resp)
}

func healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func respondError(c *gin.Context, status int, message string, err error) {
	_ = c.Error(err)
	if status >= http.StatusInternalServerError {
		loggerFrom(c).Error(message, zap.Error(err))
	}

	var requestID string
	if v, ok := c.Get(ctxRequestID); ok {
		requestID, _ = v.(string)
	}
	if errors.Is(err, context.Canceled) {
		message += " (request cancelled)"
	}
	c.AbortWithStatusJSON(status, ErrorResponse{
		Message:   message,
		Detail:    err.Error(),
		RequestID: requestID,
	})
}
