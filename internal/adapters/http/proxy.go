package http

import (
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/sirupsen/logrus"

	"github.com/melih/lighthouse-paas/internal/core/domain"
	"github.com/melih/lighthouse-paas/internal/core/ports"
)

// ProxyHandler routes <container>.<domain> requests to the running container of that name.
type ProxyHandler struct {
	service ports.ContainerService
	domain  string
	log     logrus.FieldLogger
}

func NewProxyHandler(service ports.ContainerService, baseDomain string, log logrus.FieldLogger) *ProxyHandler {
	return &ProxyHandler{service: service, domain: strings.ToLower(strings.Trim(baseDomain, ".")), log: log}
}

// ProxyRequest forwards the request when the host is a subdomain of the base domain and
// passes everything else on to the API routes.
func (h *ProxyHandler) ProxyRequest(c *fiber.Ctx) error {
	name, ok := h.containerName(c.Hostname())
	if !ok {
		return c.Next()
	}

	containers, err := h.service.ListContainers(c.UserContext())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).SendString("Failed to list containers")
	}

	target, ok := findTarget(containers, name)
	if !ok {
		return c.Status(fiber.StatusNotFound).SendString(fmt.Sprintf("App '%s' not found or not running", name))
	}

	remote, err := url.Parse(target)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).SendString("Invalid target URL")
	}

	proxy := httputil.NewSingleHostReverseProxy(remote)
	// The container sees its own address as Host.
	director := proxy.Director
	proxy.Director = func(req *http.Request) {
		director(req)
		req.Host = remote.Host
	}
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		h.log.WithError(err).WithFields(logrus.Fields{"app": name, "target": target}).Warn("Proxy request failed")
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(fmt.Sprintf("App '%s' is unreachable", name)))
	}

	return adaptor.HTTPHandler(proxy)(c)
}

// containerName extracts the leftmost label of host when host is below the base domain.
func (h *ProxyHandler) containerName(host string) (string, bool) {
	host = strings.ToLower(host)
	if h.domain == "" || !strings.HasSuffix(host, "."+h.domain) {
		return "", false
	}
	sub := strings.TrimSuffix(host, "."+h.domain)
	if sub == "" || sub == "www" || strings.Contains(sub, ".") {
		return "", false
	}
	return sub, true
}

func findTarget(containers []domain.Container, name string) (string, bool) {
	for _, ct := range containers {
		if !strings.EqualFold(ct.Name, name) || ct.Status != domain.StatusRunning || ct.IPAddress == "" {
			continue
		}
		host := ct.IPAddress
		if ct.PrivatePort != 0 {
			host += ":" + strconv.Itoa(ct.PrivatePort)
		}
		return "http://" + host, true
	}
	return "", false
}
