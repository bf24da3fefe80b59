package carrier_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/carrier"
)

func newTestClient(t *testing.T, handler http.Handler, opts ...carrier.Option) *carrier.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := carrier.Config{
		BaseURL:        srv.URL,
		Email:          "ops@example.com",
		Password:       "secret",
		PickupLocation: "Primary",
		Timeout:        2 * time.Second,
	}
	return carrier.New(cfg, opts...)
}

func authOK(w http.ResponseWriter, token string) {
	_ = json.NewEncoder(w).Encode(map[string]string{"token": token})
}

func TestClient_Authenticate_MissingCredentials(t *testing.T) {
	client := carrier.New(carrier.Config{BaseURL: "http://localhost"})
	_, err := client.Authenticate(context.Background())
	assert.ErrorIs(t, err, carrier.ErrMissingCredentials)
}

func TestClient_Authenticate_Rejected(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "invalid credentials"})
	}))

	_, err := client.Authenticate(context.Background())

	var authErr *carrier.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, http.StatusForbidden, authErr.StatusCode)
	assert.Equal(t, "invalid credentials", authErr.Message)
}

func TestClient_TokenCachedAcrossCalls(t *testing.T) {
	var authCalls int64

	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&authCalls, 1)
		authOK(w, "tok-1")
	})
	mux.HandleFunc("/orders/create/adhoc", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(map[string]any{"order_id": 42, "shipment_id": 99, "status": "NEW"})
	})

	client := newTestClient(t, mux)

	for i := 0; i < 3; i++ {
		_, err := client.CreateOrder(context.Background(), carrier.CreateOrderRequest{OrderID: "ORD-1"})
		require.NoError(t, err)
	}

	assert.Equal(t, int64(1), atomic.LoadInt64(&authCalls))
}

func TestClient_TokenRefreshedBeforeExpiry(t *testing.T) {
	var authCalls int64
	now := time.Now()
	clock := func() time.Time { return now }

	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&authCalls, 1)
		authOK(w, "tok-1")
	})
	mux.HandleFunc("/courier/track/awb/AWB123", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"tracking_data": map[string]any{"track_status": 1}})
	})

	client := newTestClient(t, mux, carrier.WithClock(clock))

	_, err := client.Track(context.Background(), "AWB123")
	require.NoError(t, err)
	assert.Equal(t, int64(1), atomic.LoadInt64(&authCalls))

	// Nine days in: token still has a day of margin left.
	now = now.Add(9*24*time.Hour - time.Minute)
	_, err = client.Track(context.Background(), "AWB123")
	require.NoError(t, err)
	assert.Equal(t, int64(1), atomic.LoadInt64(&authCalls))

	// Past the refresh margin: a new token is fetched proactively.
	now = now.Add(2 * time.Minute)
	_, err = client.Track(context.Background(), "AWB123")
	require.NoError(t, err)
	assert.Equal(t, int64(2), atomic.LoadInt64(&authCalls))
}

func TestClient_ReauthenticatesOnceOnUnauthorized(t *testing.T) {
	var authCalls, orderCalls int64

	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt64(&authCalls, 1)
		if n == 1 {
			authOK(w, "stale")
			return
		}
		authOK(w, "fresh")
	})
	mux.HandleFunc("/orders/create/adhoc", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&orderCalls, 1)
		if r.Header.Get("Authorization") == "Bearer stale" {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"message": "token expired"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"order_id": 7, "shipment_id": 8, "status": "NEW"})
	})

	client := newTestClient(t, mux)

	resp, err := client.CreateOrder(context.Background(), carrier.CreateOrderRequest{OrderID: "ORD-7"})
	require.NoError(t, err)
	assert.Equal(t, int64(7), resp.OrderID)
	assert.Equal(t, int64(2), atomic.LoadInt64(&authCalls))
	assert.Equal(t, int64(2), atomic.LoadInt64(&orderCalls))
}

func TestClient_UnauthorizedTwiceIsNotRetriedForever(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		authOK(w, "rejected-anyway")
	})
	mux.HandleFunc("/orders/create/adhoc", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "nope"})
	})

	client := newTestClient(t, mux)

	_, err := client.CreateOrder(context.Background(), carrier.CreateOrderRequest{})

	var apiErr *carrier.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
}

func TestClient_CreateOrder_CarrierErrorPropagatedVerbatim(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) { authOK(w, "tok") })
	mux.HandleFunc("/orders/create/adhoc", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "pincode not serviceable"})
	})

	client := newTestClient(t, mux)

	_, err := client.CreateOrder(context.Background(), carrier.CreateOrderRequest{})

	var apiErr *carrier.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
	assert.Equal(t, "pincode not serviceable", apiErr.Message)
}

func TestClient_AssignAWB_AcceptsBothEnvelopes(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{
			name: "flat_shape",
			body: `{"awb_code":"AWB-1","courier_company_id":24,"courier_name":"Delhivery"}`,
		},
		{
			name: "nested_response_data_shape",
			body: `{"awb_assign_status":1,"response":{"data":{"awb_code":"AWB-1","courier_company_id":24,"courier_name":"Delhivery"}}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) { authOK(w, "tok") })
			mux.HandleFunc("/courier/assign/awb", func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			})

			client := newTestClient(t, mux)

			awb, err := client.AssignAWB(context.Background(), 99)
			require.NoError(t, err)
			assert.Equal(t, "AWB-1", awb.AWBCode)
			assert.Equal(t, int64(24), awb.CourierCompanyID)
			assert.Equal(t, "Delhivery", awb.CourierName)
		})
	}
}

func TestClient_AssignAWB_NoCourierAssigned(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) { authOK(w, "tok") })
	mux.HandleFunc("/courier/assign/awb", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"awb_assign_status":0,"response":{"data":{}}}`))
	})

	client := newTestClient(t, mux)

	_, err := client.AssignAWB(context.Background(), 99)

	var awbErr *carrier.AWBError
	assert.ErrorAs(t, err, &awbErr)
}
