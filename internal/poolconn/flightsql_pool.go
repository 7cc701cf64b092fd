// flightsql_pool.go wraps apache/arrow-go/v18's flightsql client
// behind the Connection/Pool contract. Handshake-then-execute mirrors
// flightsql.rs's FlightSqlServiceClient::new + handshake + GetFlightInfo
// sequence, adapted from a one-shot DataConnectorFactory into a
// reusable pooled connection.
package poolconn

import (
	"context"
	"crypto/tls"
	"errors"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/flight"
	"github.com/apache/arrow-go/v18/arrow/flight/flightsql"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/nullstream/sqlfed/internal/canonical"
	"github.com/nullstream/sqlfed/internal/obs"
	"github.com/nullstream/sqlfed/internal/sqlfederr"
)

// FlightSQLPoolConfig configures a FlightSQL endpoint connection.
type FlightSQLPoolConfig struct {
	Name     string
	Endpoint string
	UseTLS   bool
	User     string
	Password string
}

// FlightSQLPool holds one gRPC connection and FlightSQL client shared
// by every Connect call; FlightSQL connections are cheap wrappers
// around the same underlying stream, unlike a pgx/sqlite connection
// pool that checks out distinct physical connections.
type FlightSQLPool struct {
	name   string
	client *flightsql.Client
	conn   *grpc.ClientConn
	log    zerolog.Logger
}

// NewFlightSQLPool dials cfg.Endpoint and, when cfg.User is set,
// performs the handshake with cfg.User/cfg.Password.
func NewFlightSQLPool(ctx context.Context, cfg FlightSQLPoolConfig, log zerolog.Logger) (*FlightSQLPool, error) {
	var creds credentials.TransportCredentials
	if cfg.UseTLS {
		creds = credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS12})
	} else {
		creds = insecure.NewCredentials()
	}

	conn, err := grpc.NewClient(cfg.Endpoint, grpc.WithTransportCredentials(creds))
	if err != nil {
		return nil, sqlfederr.New(sqlfederr.KindVendorFetch, "flightsql", "NewFlightSQLPool", err)
	}

	client := flightsql.NewClient(conn, nil, nil, grpc.WithTransportCredentials(creds))
	if cfg.User != "" {
		if _, err := client.Client.Handshake(ctx, cfg.User, cfg.Password); err != nil {
			conn.Close()
			return nil, sqlfederr.New(sqlfederr.KindVendorFetch, "flightsql", "NewFlightSQLPool", err)
		}
	}

	return &FlightSQLPool{name: cfg.Name, client: client, conn: conn, log: log.With().Str("backend", cfg.Name).Logger()}, nil
}

func (p *FlightSQLPool) VendorType() string { return "flightsql" }

func (p *FlightSQLPool) Connect(ctx context.Context) (Connection, error) {
	return &flightsqlConnection{name: p.name, client: p.client}, nil
}

func (p *FlightSQLPool) Close() error {
	return p.conn.Close()
}

type flightsqlConnection struct {
	name   string
	client *flightsql.Client
}

func (c *flightsqlConnection) VendorType() string { return "flightsql" }

func (c *flightsqlConnection) GetSchema(ctx context.Context, table string) (*canonical.Schema, error) {
	info, err := c.client.Execute(ctx, "SELECT * FROM "+table+" LIMIT 0")
	if err != nil {
		return nil, sqlfederr.New(sqlfederr.KindVendorFetch, "flightsql", "GetSchema", err)
	}
	schema, err := flightInfoSchema(info)
	if err != nil {
		return nil, err
	}
	return arrowSchemaToCanonical(schema)
}

func (c *flightsqlConnection) QueryArrow(ctx context.Context, query string, args ...any) (BatchStream, error) {
	start := time.Now()
	info, err := c.client.Execute(ctx, query)
	obs.RecordVendorFetch("flightsql", "QueryArrow", float64(time.Since(start).Milliseconds()))
	if err != nil {
		return nil, sqlfederr.New(sqlfederr.KindVendorFetch, "flightsql", "QueryArrow", err)
	}
	if len(info.Endpoint) == 0 {
		return &flightsqlBatchStream{}, nil
	}
	reader, err := c.client.DoGet(ctx, info.Endpoint[0].Ticket)
	if err != nil {
		return nil, sqlfederr.New(sqlfederr.KindVendorFetch, "flightsql", "QueryArrow", err)
	}
	return &flightsqlBatchStream{reader: reader}, nil
}

func (c *flightsqlConnection) Execute(ctx context.Context, query string, args ...any) (int64, error) {
	return 0, sqlfederr.New(sqlfederr.KindUnsupported, "flightsql", "Execute", errors.New("flightsql connections are read-only"))
}

func (c *flightsqlConnection) JoinPushDown() JoinPushDown {
	return AllowedFor("flightsql:" + c.name)
}

func (c *flightsqlConnection) Close() error {
	return nil
}

func flightInfoSchema(info *flight.FlightInfo) (*arrow.Schema, error) {
	schema, err := flight.DeserializeSchema(info.Schema, nil)
	if err != nil {
		return nil, sqlfederr.New(sqlfederr.KindSchemaMismatch, "flightsql", "flightInfoSchema", err)
	}
	return schema, nil
}

// flightsqlBatchStream adapts arrow-go's flight RecordReader (a push
// model driven by gRPC stream reads) to the pull-based BatchStream
// contract every other connector implements.
type flightsqlBatchStream struct {
	reader *flight.Reader
}

func (s *flightsqlBatchStream) Next(ctx context.Context) (*canonical.RecordBatch, error) {
	if s.reader == nil {
		return nil, nil
	}
	if !s.reader.Next() {
		if err := s.reader.Err(); err != nil && err != ipc.ErrIOTimeout {
			return nil, sqlfederr.New(sqlfederr.KindVendorFetch, "flightsql", "Next", err)
		}
		return nil, nil
	}
	rec := s.reader.Record()
	rec.Retain()
	schema, err := arrowSchemaToCanonical(rec.Schema())
	if err != nil {
		return nil, err
	}
	obs.RecordRowsDecoded("flightsql", float64(rec.NumRows()))
	return canonical.NewRecordBatch(schema, rec, rec.NumRows()), nil
}

func (s *flightsqlBatchStream) Close() error {
	if s.reader != nil {
		s.reader.Release()
	}
	return nil
}
