package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/archvision/archvision-backend/internal/platform/apierr"
	"github.com/archvision/archvision-backend/internal/platform/ctxutil"
	"github.com/archvision/archvision-backend/internal/platform/logger"
	"github.com/archvision/archvision-backend/internal/platform/mediastore"
	"github.com/archvision/archvision-backend/internal/repos"
	"github.com/archvision/archvision-backend/internal/similarity"
	"github.com/archvision/archvision-backend/internal/types"
)

// ImageSource is either an already-read upload (Data + ContentType) or a URL
// to download. Exactly one of the two should be set.
type ImageSource struct {
	URL         string
	Data        []byte
	ContentType string
}

type AddProductResult struct {
	ProductID     uuid.UUID
	ImageFilename string
	ImageURL      string
	Features      types.ImageFeatures
}

type SimilarProduct struct {
	ID              uuid.UUID       `json:"id"`
	SourceURL       string          `json:"source_url"`
	ImageFilename   string          `json:"image_filename"`
	ImageURL        string          `json:"image_url"`
	SimilarityScore int             `json:"similarity_score"`
	Features        json.RawMessage `json:"features"`
	CreatedAt       time.Time       `json:"created_at"`
}

type FindSimilarResult struct {
	QueryFeatures   types.ImageFeatures
	QueryTags       []string
	SimilarProducts []SimilarProduct
	TotalChecked    int
}

// ProductService implements the two catalog use cases: ingest a product with
// AI feature extraction, and rank the catalog against a query image.
type ProductService interface {
	AddProduct(ctx context.Context, sourceURL string, image ImageSource) (AddProductResult, error)
	FindSimilar(ctx context.Context, image ImageSource) (FindSimilarResult, error)
}

type productService struct {
	db         *gorm.DB
	log        *logger.Logger
	products   repos.ProductRepo
	store      mediastore.Store
	downloader ImageDownloadService
	analysis   ImageAnalysisService
	rankLimit  int
}

func NewProductService(
	db *gorm.DB,
	baseLog *logger.Logger,
	products repos.ProductRepo,
	store mediastore.Store,
	downloader ImageDownloadService,
	analysis ImageAnalysisService,
	rankLimit int,
) ProductService {
	serviceLog := baseLog.With("service", "ProductService")
	if rankLimit <= 0 {
		rankLimit = 10
	}
	return &productService{
		db:         db,
		log:        serviceLog,
		products:   products,
		store:      store,
		downloader: downloader,
		analysis:   analysis,
		rankLimit:  rankLimit,
	}
}

// resolve turns an ImageSource into raw bytes plus a filename extension.
func (s *productService) resolve(ctx context.Context, image ImageSource) ([]byte, string, error) {
	if len(image.Data) > 0 {
		if len(image.Data) > MaxImageBytes {
			return nil, "", apierr.New(http.StatusBadRequest, "image_too_large", fmt.Errorf("image file too large (max 10MB)"))
		}
		return image.Data, ExtensionForContentType(image.ContentType), nil
	}
	if strings.TrimSpace(image.URL) != "" {
		data, ext, err := s.downloader.Download(ctx, image.URL)
		if err != nil {
			return nil, "", apierr.New(http.StatusBadRequest, "image_download_failed", err)
		}
		return data, ext, nil
	}
	return nil, "", apierr.New(http.StatusBadRequest, "image_required", fmt.Errorf("no image data provided"))
}

func (s *productService) AddProduct(ctx context.Context, sourceURL string, image ImageSource) (AddProductResult, error) {
	ctx = ctxutil.Default(ctx)

	sourceURL = strings.TrimSpace(sourceURL)
	if sourceURL == "" {
		return AddProductResult{}, apierr.New(http.StatusBadRequest, "source_url_required", fmt.Errorf("source_url is required"))
	}

	exists, err := s.products.ExistsBySourceURL(ctx, nil, sourceURL)
	if err != nil {
		return AddProductResult{}, apierr.New(http.StatusInternalServerError, "product_lookup_failed", err)
	}
	if exists {
		return AddProductResult{}, apierr.New(http.StatusBadRequest, "source_url_exists", fmt.Errorf("a product with this source_url already exists"))
	}

	data, ext, err := s.resolve(ctx, image)
	if err != nil {
		return AddProductResult{}, err
	}

	filename := fmt.Sprintf("%s.%s", uuid.New(), ext)
	if err := s.store.Save(ctx, filename, data); err != nil {
		return AddProductResult{}, apierr.New(http.StatusInternalServerError, "image_save_failed", err)
	}

	// Everything after the save is compensated: on any failure the stored
	// file is deleted best-effort so no orphan is left behind.
	committed := false
	defer func() {
		if committed {
			return
		}
		if delErr := s.store.Delete(ctx, filename); delErr != nil {
			s.log.Warn("Compensating image delete failed", "image_filename", filename, "error", delErr)
		}
	}()

	features, err := s.analysis.AnalyzeImage(ctx, data, "image/"+ext)
	if err != nil {
		return AddProductResult{}, apierr.New(http.StatusBadRequest, "analysis_failed", err)
	}

	featuresJSON, err := json.Marshal(features)
	if err != nil {
		return AddProductResult{}, apierr.New(http.StatusInternalServerError, "features_encode_failed", err)
	}

	product, err := s.products.Create(ctx, nil, &types.Product{
		SourceURL:     sourceURL,
		ImageFilename: filename,
		Features:      featuresJSON,
	})
	if err != nil {
		return AddProductResult{}, apierr.New(http.StatusInternalServerError, "product_create_failed", err)
	}
	committed = true

	s.log.Info("Product ingested",
		"product_id", product.ID,
		"image_filename", filename,
		"tag_count", len(similarity.ExtractTags(features)),
	)

	return AddProductResult{
		ProductID:     product.ID,
		ImageFilename: filename,
		ImageURL:      s.store.PublicURL(filename),
		Features:      features,
	}, nil
}

func (s *productService) FindSimilar(ctx context.Context, image ImageSource) (FindSimilarResult, error) {
	ctx = ctxutil.Default(ctx)

	data, ext, err := s.resolve(ctx, image)
	if err != nil {
		return FindSimilarResult{}, err
	}

	features, err := s.analysis.AnalyzeImage(ctx, data, "image/"+ext)
	if err != nil {
		return FindSimilarResult{}, apierr.New(http.StatusBadRequest, "analysis_failed", err)
	}
	queryTags := similarity.ExtractTags(features)

	products, err := s.products.ListAll(ctx, nil)
	if err != nil {
		return FindSimilarResult{}, apierr.New(http.StatusInternalServerError, "product_scan_failed", err)
	}

	matches := similarity.Rank(products, queryTags, s.rankLimit)
	results := make([]SimilarProduct, 0, len(matches))
	for _, m := range matches {
		results = append(results, SimilarProduct{
			ID:              m.Product.ID,
			SourceURL:       m.Product.SourceURL,
			ImageFilename:   m.Product.ImageFilename,
			ImageURL:        s.store.PublicURL(m.Product.ImageFilename),
			SimilarityScore: m.Score,
			Features:        json.RawMessage(m.Product.Features),
			CreatedAt:       m.Product.CreatedAt,
		})
	}

	return FindSimilarResult{
		QueryFeatures:   features,
		QueryTags:       queryTags,
		SimilarProducts: results,
		TotalChecked:    len(products),
	}, nil
}
