package shared

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
)

type HttpService struct {
	Name    string `json:"name"`
	Port    string `json:"port"`
	Prefork bool   `json:"prefork"`
	App     *fiber.App
}

func NewHttpService(name string, port string, prefork bool) *HttpService {
	return &HttpService{
		Name:    name,
		Port:    port,
		Prefork: prefork,
	}
}

func (h *HttpService) Init() {
	h.App = fiber.New(fiber.Config{
		AppName: h.Name,
		Prefork: h.Prefork,
	})
}

func (h *HttpService) Use(args ...interface{}) {
	h.App.Use(args...)
}

func (h *HttpService) Routes(path string, handler fiber.Handler, method string) {
	switch method {
	case "GET":
		h.App.Get(path, handler)
	case "POST":
		h.App.Post(path, handler)
	case "PUT":
		h.App.Put(path, handler)
	case "DELETE":
		h.App.Delete(path, handler)
	default:
		h.App.Get(path, handler)
	}
}

// Start listens on the configured port and blocks. On SIGINT/SIGTERM the
// listener is shut down and onShutdown runs before returning.
func (h *HttpService) Start(onShutdown func()) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		h.App.Shutdown()
	}()

	err := h.App.Listen(fmt.Sprintf(":%s", h.Port))
	if onShutdown != nil {
		onShutdown()
	}
	return err
}
