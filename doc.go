/*
Package confhttpd implements a configurable HTTP/1.1 application server.

Configuration

A server is driven by a small nginx-style configuration file:

	port 8080;

	location /echo EchoHandler {}

	location /static StaticHandler {
		root /var/www;
	}

	location /api CrudHandler {
		data_path /var/data;
	}

The file is tokenized and parsed into a tree of Statements and Blocks (see
Parse), then turned into a routing table (see BuildRegistry) that maps URL
path prefixes to Handler instances by longest-prefix match.

Handlers

A Handler is the single abstraction every request passes through:

	type Handler interface {
		Handle(req *Request) *Response
	}

RegisterHandlerType lets a handler module make itself available to the
configuration parser under a type name ("StaticHandler", "CrudHandler", ...)
without the registry needing to import it directly.

Serving

Server ties the pieces together: it accepts TCP connections and starts a
goroutine for each one that runs a per-connection Session until the peer
closes the connection or a fatal error occurs. Server.Workers bounds how
many handler calls run at once, not how many connections are open.
*/
package confhttpd
