package occupancy

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/deskwise/deskwise/internal/common/httpx"
)

type responseHandlerParam struct {
	method  string
	path    string
	handler httpx.RequestHandler
}

var occupancyHandlers = []responseHandlerParam{
	{
		method:  http.MethodPost,
		path:    "/desks/{deskID}/pair",
		handler: pairDesk,
	},
	{
		method:  http.MethodPost,
		path:    "/desks/{deskID}/force-unpair",
		handler: forceUnpairDesk,
	},
	{
		method:  http.MethodPost,
		path:    "/desks/{deskID}/bookings",
		handler: bookDesk,
	},
	{
		method:  http.MethodPost,
		path:    "/unpair",
		handler: unpairDesk,
	},
}

// Router mounts the occupancy endpoints on the given router.
func Router(r chi.Router) {
	for _, handler := range occupancyHandlers {
		r.Method(handler.method, handler.path, httpx.WrapHttpRsp(handler.handler))
	}
}
