package semantic

import (
	"context"
	"fmt"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// PointsAPI is the slice of pb.PointsClient the store uses.
type PointsAPI interface {
	Upsert(ctx context.Context, in *pb.UpsertPoints, opts ...grpc.CallOption) (*pb.PointsOperationResponse, error)
	Search(ctx context.Context, in *pb.SearchPoints, opts ...grpc.CallOption) (*pb.SearchResponse, error)
	Query(ctx context.Context, in *pb.QueryPoints, opts ...grpc.CallOption) (*pb.QueryResponse, error)
}

// CollectionsAPI is the slice of pb.CollectionsClient the store uses.
type CollectionsAPI interface {
	List(ctx context.Context, in *pb.ListCollectionsRequest, opts ...grpc.CallOption) (*pb.ListCollectionsResponse, error)
	Create(ctx context.Context, in *pb.CreateCollection, opts ...grpc.CallOption) (*pb.CollectionOperationResponse, error)
	Delete(ctx context.Context, in *pb.DeleteCollection, opts ...grpc.CallOption) (*pb.CollectionOperationResponse, error)
}

// Store is the sole owner of all Qdrant operations for one collection.
type Store struct {
	conn        *grpc.ClientConn
	points      PointsAPI
	collections CollectionsAPI
	collection  string
	spaces      []Space
}

// New creates a Store connected to Qdrant at the given gRPC address. spaces
// declares the collection's named vector spaces; their dimensions are fixed
// at creation time.
func New(addr, collection string, spaces []Space) (*Store, error) {
	if len(spaces) == 0 {
		return nil, fmt.Errorf("semantic: collection %s declares no vector spaces", collection)
	}
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("semantic: dial qdrant %s: %w", addr, err)
	}
	return &Store{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		collection:  collection,
		spaces:      spaces,
	}, nil
}

// NewWithClients creates a Store over existing clients.
func NewWithClients(points PointsAPI, collections CollectionsAPI, collection string, spaces []Space) *Store {
	return &Store{
		points:      points,
		collections: collections,
		collection:  collection,
		spaces:      spaces,
	}
}

// Close closes the underlying gRPC connection, if the Store owns one.
func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

// Spaces returns the declared vector spaces.
func (s *Store) Spaces() []Space {
	out := make([]Space, len(s.spaces))
	copy(out, s.spaces)
	return out
}

// Exists reports whether the collection exists.
func (s *Store) Exists(ctx context.Context) (bool, error) {
	list, err := s.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return false, fmt.Errorf("semantic: list collections: %w", err)
	}
	for _, c := range list.GetCollections() {
		if c.GetName() == s.collection {
			return true, nil
		}
	}
	return false, nil
}

// EnsureCollection creates the collection with the declared named spaces.
// With recreate, an existing collection is deleted first so dimensions can
// change; without it, an existing collection is left untouched.
func (s *Store) EnsureCollection(ctx context.Context, recreate bool) error {
	exists, err := s.Exists(ctx)
	if err != nil {
		return err
	}

	if exists {
		if !recreate {
			return nil
		}
		if err := s.DeleteCollection(ctx); err != nil {
			return err
		}
	}

	params := make(map[string]*pb.VectorParams, len(s.spaces))
	for _, sp := range s.spaces {
		params[sp.Name] = &pb.VectorParams{
			Size:     uint64(sp.Dims),
			Distance: pb.Distance_Cosine,
		}
	}

	_, err = s.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_ParamsMap{
				ParamsMap: &pb.VectorParamsMap{Map: params},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("semantic: create collection %s: %w", s.collection, err)
	}
	return nil
}

// DeleteCollection deletes the collection and all its points.
func (s *Store) DeleteCollection(ctx context.Context) error {
	_, err := s.collections.Delete(ctx, &pb.DeleteCollection{
		CollectionName: s.collection,
	})
	if err != nil {
		return fmt.Errorf("semantic: delete collection %s: %w", s.collection, err)
	}
	return nil
}

// Upsert stores points with their named vectors. Referencing a space the
// collection never declared fails immediately; that is a configuration
// error, not data loss.
func (s *Store) Upsert(ctx context.Context, points []Point) error {
	if len(points) == 0 {
		return nil
	}

	declared := make(map[string]bool, len(s.spaces))
	for _, sp := range s.spaces {
		declared[sp.Name] = true
	}

	structs := make([]*pb.PointStruct, len(points))
	for i, p := range points {
		named := make(map[string]*pb.Vector, len(p.Vectors))
		for space, vec := range p.Vectors {
			if !declared[space] {
				return fmt.Errorf("semantic: point %s uses undeclared vector space %q", p.ID, space)
			}
			named[space] = &pb.Vector{Data: vec}
		}

		structs[i] = &pb.PointStruct{
			Id: &pb.PointId{
				PointIdOptions: &pb.PointId_Uuid{Uuid: p.ID},
			},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vectors{
					Vectors: &pb.NamedVectors{Vectors: named},
				},
			},
			Payload: payloadValues(p.Payload),
		}
	}

	wait := true
	_, err := s.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: s.collection,
		Wait:           &wait,
		Points:         structs,
	})
	if err != nil {
		return fmt.Errorf("semantic: upsert %d points: %w", len(points), err)
	}
	return nil
}

// Search performs k-NN similarity search within one named space.
func (s *Store) Search(ctx context.Context, space string, vector []float32, topK int) ([]Hit, error) {
	resp, err := s.points.Search(ctx, &pb.SearchPoints{
		CollectionName: s.collection,
		Vector:         vector,
		VectorName:     &space,
		Limit:          uint64(topK),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		return nil, fmt.Errorf("semantic: search %s: %w", space, err)
	}

	hits := make([]Hit, len(resp.GetResult()))
	for i, r := range resp.GetResult() {
		hits[i] = hitFromScored(r)
	}
	return hits, nil
}

// FusedQuery runs one prefetch sub-query per lane and fuses them server-side
// with Qdrant's Reciprocal Rank Fusion.
func (s *Store) FusedQuery(ctx context.Context, lanes []Lane, topK int) ([]Hit, error) {
	prefetch := make([]*pb.PrefetchQuery, len(lanes))
	for i, ln := range lanes {
		using := ln.Space
		limit := uint64(ln.TopK)
		prefetch[i] = &pb.PrefetchQuery{
			Query: &pb.Query{
				Variant: &pb.Query_Nearest{
					Nearest: &pb.VectorInput{
						Variant: &pb.VectorInput_Dense{Dense: &pb.DenseVector{Data: ln.Vector}},
					},
				},
			},
			Using: &using,
			Limit: &limit,
		}
	}

	limit := uint64(topK)
	resp, err := s.points.Query(ctx, &pb.QueryPoints{
		CollectionName: s.collection,
		Prefetch:       prefetch,
		Query: &pb.Query{
			Variant: &pb.Query_Fusion{Fusion: pb.Fusion_RRF},
		},
		Limit:       &limit,
		WithPayload: &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		return nil, fmt.Errorf("semantic: fused query: %w", err)
	}

	hits := make([]Hit, len(resp.GetResult()))
	for i, r := range resp.GetResult() {
		hits[i] = hitFromScored(r)
	}
	return hits, nil
}

func payloadValues(payload map[string]any) map[string]*pb.Value {
	out := make(map[string]*pb.Value, len(payload))
	for k, val := range payload {
		switch tv := val.(type) {
		case string:
			out[k] = &pb.Value{Kind: &pb.Value_StringValue{StringValue: tv}}
		case int:
			out[k] = &pb.Value{Kind: &pb.Value_IntegerValue{IntegerValue: int64(tv)}}
		case int64:
			out[k] = &pb.Value{Kind: &pb.Value_IntegerValue{IntegerValue: tv}}
		case float64:
			out[k] = &pb.Value{Kind: &pb.Value_DoubleValue{DoubleValue: tv}}
		case bool:
			out[k] = &pb.Value{Kind: &pb.Value_BoolValue{BoolValue: tv}}
		default:
			out[k] = &pb.Value{Kind: &pb.Value_StringValue{StringValue: fmt.Sprint(tv)}}
		}
	}
	return out
}

func hitFromScored(r *pb.ScoredPoint) Hit {
	h := Hit{
		ID:    r.GetId().GetUuid(),
		Score: r.GetScore(),
	}
	for k, val := range r.GetPayload() {
		switch k {
		case "path":
			h.Path = val.GetStringValue()
		case "type":
			h.Type = val.GetStringValue()
		case "text":
			h.Text = val.GetStringValue()
		case "chunk_index":
			h.ChunkIndex = int(val.GetIntegerValue())
		}
	}
	return h
}
