// Package transports imports every built-in transport so each registers itself
// with the default registry.
package transports

import (
	_ "github.com/Depechie/2024-portotechhub-aspireotel/transport/aws"
	_ "github.com/Depechie/2024-portotechhub-aspireotel/transport/channel"
	_ "github.com/Depechie/2024-portotechhub-aspireotel/transport/rabbitmq"
)
