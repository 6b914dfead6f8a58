// Package lambdaroute routes AWS Lambda trigger payloads to typed handlers.
//
// A single Lambda function often receives payloads from several triggers:
// SQS queues, SNS topics, EventBridge rules, S3 notifications and direct
// invocations. The lambdaroute package works out which trigger produced a
// payload, decodes the user data embedded in it, calls the handler registered
// for the trigger's name and turns the handler's return value into the
// response shape Lambda expects.
//
// # Quick Start
//
// Define a payload and a handler:
//
//	type Order struct {
//	    ID    string `json:"id"`
//	    Total int    `json:"total"`
//	}
//
//	type OrderHandler struct{}
//
//	func (h *OrderHandler) Handle(ctx context.Context, e *lambdaroute.SQSEvent[Order]) (*lambdaroute.Response, error) {
//	    for _, rec := range e.Records {
//	        fmt.Println(rec.Payload.ID)
//	    }
//	    return &lambdaroute.Response{StatusCode: 200}, nil
//	}
//
// Create a router, register handlers and start the Lambda runtime:
//
//	r := lambdaroute.New()
//	lambdaroute.Must(lambdaroute.RegisterSQS(r, "orders", &OrderHandler{}))
//	lambda.Start(r)
//
// # Classification
//
// Every payload is checked against a fixed, ordered list of shapes. The first
// shape whose structural predicate matches is parsed; predicates never parse
// the payload and never fail. The order is:
//
//  1. SQS: Records[*].eventSource == "aws:sqs". Key: queue name from eventSourceARN.
//  2. SNS: Records[*].EventSource == "aws:sns". Key: topic name from Sns.TopicArn.
//  3. S3: Records[*].eventSource == "aws:s3". Key: eventName.
//  4. EventBridge: source, detail-type, detail and a non-empty resources list.
//     Key: last path segment of resources[0].
//  5. Direct invocation: direct_invocation.trigger. Key: the trigger.
//
// A Records list that is present but empty matches nothing. Payloads that
// match nothing go to the fallback Sink, or receive a 404 result.
//
// # Payload Decoding
//
// Handlers declare the type of their embedded payload through the type
// parameter of the Register function. SQS bodies, SNS messages, EventBridge
// details and direct invocation bodies are decoded into it. String payloads
// holding JSON text are decoded from the text.
//
// Decoded values are validated if the type implements Validate() error, and
// against a JSON Schema when registered with WithSchema. Use any as the type
// parameter to receive generic JSON values.
//
// Decode failures in a batched trigger (SQS, SNS) are attached to the failing
// record's Err field and the handler still runs; if every record fails, or
// the trigger carries a single payload, the result is a 400 response.
//
// # Raw Mode
//
// RegisterRaw registers a handler that receives the untouched envelope as a
// map and returns a response map, which is passed back unchanged once it is
// known to carry a statusCode.
//
// # Responses
//
// Typed handlers return a *Response. Direct invocations keep structured bodies;
// all other triggers get the body serialized to a string. Responses without
// headers get DefaultHeaders.
//
// # Fallback Sinks
//
// Payloads that match no trigger shape, or have no registered handler, go to
// the Sink given with WithSink, or get a 404 when there is none. The httpsink
// sub-package serves API Gateway proxy events from an http.Handler, and
// kafkasink forwards payloads to a dead-letter topic. httpsink.WithFallback
// chains the two.
//
// # Hooks
//
// Hooks provide observability without coupling to specific logging or metrics
// systems:
//
//   - WithOnParse: Called after classification, enriches context
//   - WithOnDispatch: Called just before the handler executes
//   - WithOnSuccess: Called after the handler succeeds
//   - WithOnFailure: Called after the handler fails
//   - WithOnUnmatched: Called when no trigger shape matches
//   - WithOnNoHandler: Called when no handler is registered
//   - WithOnDecodeError: Called for each payload that fails to decode
//
// The metrics sub-package builds Prometheus hooks. WithLogger plugs in a zap
// logger.
//
// # Errors
//
// Error types live in the Errors namespace (github.com/joomcode/errorx).
// Only registration errors are returned to the caller; registering two
// handlers for the same kind and key fails with ErrDuplicateRegistration.
// All dispatch failures are converted into results whose body names the error
// type.
//
// # Thread Safety
//
// Register all handlers before the first dispatch. The registry is sealed
// when dispatching starts and is read without locks afterwards.
package lambdaroute
