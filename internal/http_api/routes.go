package http_api

// routes sets up the routes for the HTTP server.
func (s *HTTPServer) routes() {
	s.router.POST("/api/v1/locations/:location_id/collect", s.collect)
	s.router.GET("/api/v1/collections/:record_id/mint_status", s.mintStatus)
	s.router.GET("/api/v1/balance", s.balance)
	s.router.GET("/api/v1/transactions", s.transactions)
	s.router.POST("/api/v1/transfer", s.transfer)
	s.router.GET("/api/v1/leaderboard", s.leaderboard)
}
