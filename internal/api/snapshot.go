package api

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
)

// pageSize is the maximum page size the snapshot API allows.
const pageSize = 1000

// GetLots fetches a page of lot aggregates.
func (c *Client) GetLots(ctx context.Context, cursor string) (*LotsResponse, error) {
	query := url.Values{}
	query.Set("limit", strconv.Itoa(pageSize))
	if cursor != "" {
		query.Set("cursor", cursor)
	}

	var resp LotsResponse
	if err := c.get(ctx, "/lots", query, &resp); err != nil {
		return nil, fmt.Errorf("get lots: %w", err)
	}
	return &resp, nil
}

// GetAllLots fetches every lot aggregate by paginating through results.
func (c *Client) GetAllLots(ctx context.Context) ([]APILot, error) {
	var all []APILot
	cursor := ""

	for {
		resp, err := c.GetLots(ctx, cursor)
		if err != nil {
			return nil, err
		}
		all = append(all, resp.Lots...)

		if resp.Cursor == "" {
			break
		}
		cursor = resp.Cursor
	}

	return all, nil
}

// GetSpots fetches a page of spots, optionally filtered to one lot.
func (c *Client) GetSpots(ctx context.Context, lotID, cursor string) (*SpotsResponse, error) {
	query := url.Values{}
	query.Set("limit", strconv.Itoa(pageSize))
	if lotID != "" {
		query.Set("lot_id", lotID)
	}
	if cursor != "" {
		query.Set("cursor", cursor)
	}

	var resp SpotsResponse
	if err := c.get(ctx, "/spots", query, &resp); err != nil {
		return nil, fmt.Errorf("get spots: %w", err)
	}
	return &resp, nil
}

// GetAllSpots fetches every spot by paginating through results. An
// empty lotID fetches spots across all lots.
func (c *Client) GetAllSpots(ctx context.Context, lotID string) ([]APISpot, error) {
	var all []APISpot
	cursor := ""

	for {
		resp, err := c.GetSpots(ctx, lotID, cursor)
		if err != nil {
			return nil, err
		}
		all = append(all, resp.Spots...)

		if resp.Cursor == "" {
			break
		}
		cursor = resp.Cursor
	}

	return all, nil
}
