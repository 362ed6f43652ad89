package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/archvision/archvision-backend/internal/platform/apierr"
	"github.com/archvision/archvision-backend/internal/types"
)

type fakeAnalysis struct {
	features types.ImageFeatures
	err      error
}

func (f *fakeAnalysis) AnalyzeImage(ctx context.Context, image []byte, mimeType string) (types.ImageFeatures, error) {
	if f.err != nil {
		return types.ImageFeatures{}, f.err
	}
	return f.features, nil
}

type fakeProductRepo struct {
	products  []*types.Product
	createErr error
	listErr   error
	existing  map[string]bool
}

func (f *fakeProductRepo) Create(ctx context.Context, tx *gorm.DB, product *types.Product) (*types.Product, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	product.ID = uuid.New()
	product.CreatedAt = time.Now().UTC()
	product.UpdatedAt = product.CreatedAt
	f.products = append(f.products, product)
	return product, nil
}

func (f *fakeProductRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Product, error) {
	for _, p := range f.products {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeProductRepo) ListAll(ctx context.Context, tx *gorm.DB) ([]*types.Product, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.products, nil
}

func (f *fakeProductRepo) ExistsBySourceURL(ctx context.Context, tx *gorm.DB, sourceURL string) (bool, error) {
	return f.existing[sourceURL], nil
}

func chairFeatures() types.ImageFeatures {
	return types.ImageFeatures{
		MainObjects:  []types.IdentifiedObject{{ObjectType: "chair", Attributes: []string{"wooden"}}},
		OverallStyle: []string{"minimalist"},
	}
}

func newProductService(t *testing.T, repo *fakeProductRepo, store *fakeStore, analysis *fakeAnalysis) ProductService {
	t.Helper()
	return NewProductService(nil, testLogger(t), repo, store, &fakeDownloader{}, analysis, 10)
}

func TestAddProductPersistsImageAndRow(t *testing.T) {
	repo := &fakeProductRepo{existing: map[string]bool{}}
	store := newFakeStore()
	svc := newProductService(t, repo, store, &fakeAnalysis{features: chairFeatures()})

	result, err := svc.AddProduct(context.Background(), "https://shop.test/chair", ImageSource{
		Data:        []byte{0xFF, 0xD8},
		ContentType: "image/jpeg",
	})
	if err != nil {
		t.Fatalf("add product failed: %v", err)
	}
	if result.ProductID == uuid.Nil {
		t.Fatal("product ID not assigned")
	}
	if !strings.HasSuffix(result.ImageFilename, ".jpg") {
		t.Fatalf("filename: want .jpg suffix, got=%q", result.ImageFilename)
	}
	if _, ok := store.saved[result.ImageFilename]; !ok {
		t.Fatalf("image not saved under %q", result.ImageFilename)
	}
	if len(repo.products) != 1 {
		t.Fatalf("rows created: want=1 got=%d", len(repo.products))
	}

	var stored types.ImageFeatures
	if err := json.Unmarshal(repo.products[0].Features, &stored); err != nil {
		t.Fatalf("stored features not JSON: %v", err)
	}
	if stored.MainObjects[0].ObjectType != "chair" {
		t.Fatalf("stored features: got=%+v", stored)
	}
	if len(store.deleted) != 0 {
		t.Fatalf("unexpected compensating delete: %v", store.deleted)
	}
}

func TestAddProductCompensatesOnAnalysisFailure(t *testing.T) {
	repo := &fakeProductRepo{existing: map[string]bool{}}
	store := newFakeStore()
	svc := newProductService(t, repo, store, &fakeAnalysis{err: errors.New("all analysis models failed")})

	_, err := svc.AddProduct(context.Background(), "https://shop.test/chair", ImageSource{
		Data:        []byte{0xFF, 0xD8},
		ContentType: "image/jpeg",
	})
	if err == nil {
		t.Fatal("expected analysis error")
	}
	if len(store.deleted) != 1 {
		t.Fatalf("compensating delete: want=1 got=%v", store.deleted)
	}
	if len(repo.products) != 0 {
		t.Fatalf("no row should be created, got=%d", len(repo.products))
	}
}

func TestAddProductCompensatesOnCreateFailure(t *testing.T) {
	repo := &fakeProductRepo{existing: map[string]bool{}, createErr: errors.New("unique constraint")}
	store := newFakeStore()
	svc := newProductService(t, repo, store, &fakeAnalysis{features: chairFeatures()})

	_, err := svc.AddProduct(context.Background(), "https://shop.test/chair", ImageSource{
		Data:        []byte{0xFF, 0xD8},
		ContentType: "image/jpeg",
	})
	if err == nil {
		t.Fatal("expected create error")
	}
	if len(store.deleted) != 1 {
		t.Fatalf("compensating delete: want=1 got=%v", store.deleted)
	}
}

func TestAddProductRejectsDuplicateSourceURL(t *testing.T) {
	repo := &fakeProductRepo{existing: map[string]bool{"https://shop.test/chair": true}}
	store := newFakeStore()
	svc := newProductService(t, repo, store, &fakeAnalysis{features: chairFeatures()})

	_, err := svc.AddProduct(context.Background(), "https://shop.test/chair", ImageSource{
		Data:        []byte{0xFF, 0xD8},
		ContentType: "image/jpeg",
	})
	var apiErr *apierr.Error
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusBadRequest {
		t.Fatalf("want 400 apierr, got=%v", err)
	}
	if len(store.saved) != 0 {
		t.Fatalf("nothing should be saved for a duplicate, got=%v", store.saved)
	}
}

func TestAddProductRequiresSourceURL(t *testing.T) {
	svc := newProductService(t, &fakeProductRepo{}, newFakeStore(), &fakeAnalysis{features: chairFeatures()})

	_, err := svc.AddProduct(context.Background(), "   ", ImageSource{Data: []byte{1}})
	var apiErr *apierr.Error
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusBadRequest || apiErr.Code != "source_url_required" {
		t.Fatalf("want source_url_required 400, got=%v", err)
	}
}

func TestAddProductRequiresImage(t *testing.T) {
	svc := newProductService(t, &fakeProductRepo{existing: map[string]bool{}}, newFakeStore(), &fakeAnalysis{features: chairFeatures()})

	_, err := svc.AddProduct(context.Background(), "https://shop.test/chair", ImageSource{})
	var apiErr *apierr.Error
	if !errors.As(err, &apiErr) || apiErr.Code != "image_required" {
		t.Fatalf("want image_required, got=%v", err)
	}
}

func TestAddProductRejectsOversizedUpload(t *testing.T) {
	svc := newProductService(t, &fakeProductRepo{existing: map[string]bool{}}, newFakeStore(), &fakeAnalysis{features: chairFeatures()})

	_, err := svc.AddProduct(context.Background(), "https://shop.test/chair", ImageSource{
		Data:        make([]byte, MaxImageBytes+1),
		ContentType: "image/jpeg",
	})
	var apiErr *apierr.Error
	if !errors.As(err, &apiErr) || apiErr.Code != "image_too_large" {
		t.Fatalf("want image_too_large, got=%v", err)
	}
}

func TestFindSimilarEmptyCatalog(t *testing.T) {
	repo := &fakeProductRepo{}
	svc := newProductService(t, repo, newFakeStore(), &fakeAnalysis{features: chairFeatures()})

	result, err := svc.FindSimilar(context.Background(), ImageSource{
		Data:        []byte{0xFF, 0xD8},
		ContentType: "image/jpeg",
	})
	if err != nil {
		t.Fatalf("empty catalog must not error: %v", err)
	}
	if len(result.SimilarProducts) != 0 {
		t.Fatalf("results: want=0 got=%d", len(result.SimilarProducts))
	}
	if result.TotalChecked != 0 {
		t.Fatalf("total checked: want=0 got=%d", result.TotalChecked)
	}
}

func TestFindSimilarRanksAndAttachesURLs(t *testing.T) {
	repo := &fakeProductRepo{existing: map[string]bool{}}
	store := newFakeStore()
	svc := newProductService(t, repo, store, &fakeAnalysis{features: chairFeatures()})

	seed := func(sourceURL string, features types.ImageFeatures) {
		raw, err := json.Marshal(features)
		if err != nil {
			t.Fatalf("marshal seed features: %v", err)
		}
		if _, err := repo.Create(context.Background(), nil, &types.Product{
			SourceURL:     sourceURL,
			ImageFilename: uuid.New().String() + ".jpg",
			Features:      raw,
		}); err != nil {
			t.Fatalf("seed product: %v", err)
		}
	}
	seed("https://shop.test/chair", chairFeatures())
	seed("https://shop.test/lamp", types.ImageFeatures{
		MainObjects: []types.IdentifiedObject{{ObjectType: "lamp", Attributes: []string{"brass"}}},
	})

	result, err := svc.FindSimilar(context.Background(), ImageSource{
		Data:        []byte{0xFF, 0xD8},
		ContentType: "image/jpeg",
	})
	if err != nil {
		t.Fatalf("find similar failed: %v", err)
	}
	if result.TotalChecked != 2 {
		t.Fatalf("total checked: want=2 got=%d", result.TotalChecked)
	}
	if len(result.SimilarProducts) != 1 {
		t.Fatalf("results: want=1 got=%d", len(result.SimilarProducts))
	}
	got := result.SimilarProducts[0]
	if got.SourceURL != "https://shop.test/chair" {
		t.Fatalf("wrong product matched: %q", got.SourceURL)
	}
	if got.SimilarityScore != 3 {
		t.Fatalf("score: want=3 got=%d", got.SimilarityScore)
	}
	if !strings.HasPrefix(got.ImageURL, "http://media.test/media/") {
		t.Fatalf("public URL not attached: %q", got.ImageURL)
	}
	if len(result.QueryTags) != 3 {
		t.Fatalf("query tags: want=3 got=%v", result.QueryTags)
	}
}
